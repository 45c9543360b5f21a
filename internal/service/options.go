package service

// Option defines a functional configuration type for the Session.
type Option func(*Session)

// WithMailboxSize sets how many pending UI operations (bootstrap result,
// notice dismissal) the loop buffers before DismissNotice reports overflow.
func WithMailboxSize(size int) Option {
	return func(s *Session) {
		s.config.mailboxSize = size
	}
}

// WithWatcherBuffer sets the [BACKPRESSURE] threshold of each watcher.
// A watcher that falls further behind loses its oldest snapshots.
func WithWatcherBuffer(size int) Option {
	return func(s *Session) {
		s.config.watcherBuffer = size
	}
}
