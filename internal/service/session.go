package service

import "github.com/serroba/shortlink/internal/shortener"

// Session identifies who is acting. It is passed explicitly to every call
// instead of living in a process-wide "current user".
type Session struct {
	// ID correlates log lines of one interactive session.
	ID   string
	User shortener.UserID
}
