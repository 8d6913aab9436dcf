package fetch

import "sync/atomic"

// Stats 记录进程生命周期内的回源计数，供诊断端读取。
type Stats struct {
	hits     atomic.Int64
	misses   atomic.Int64
	forwards atomic.Int64
	fetched  atomic.Int64
	notFound atomic.Int64
	served   atomic.Int64
	failures atomic.Int64
}

// Snapshot 是某一时刻的计数快照。
type Snapshot struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Forwards int64 `json:"forwards"`
	Fetched  int64 `json:"fetched"`
	NotFound int64 `json:"not_found"`
	Served   int64 `json:"served"`
	Failures int64 `json:"failures"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		Forwards: s.forwards.Load(),
		Fetched:  s.fetched.Load(),
		NotFound: s.notFound.Load(),
		Served:   s.served.Load(),
		Failures: s.failures.Load(),
	}
}
