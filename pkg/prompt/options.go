package prompt

import "go.uber.org/zap"

// Theme captures optional prefixes applied to informational and error
// messages.
type Theme struct {
	InfoPrefix  string
	ErrorPrefix string
}

// Option configures a Session.
type Option func(*Session)

// WithPromptDriver overrides the prompt driver used by the session.
func WithPromptDriver(driver PromptDriver) Option {
	return func(s *Session) {
		if driver != nil {
			s.driver = driver
		}
	}
}

// WithLabels sets prompt labels keyed by dotted field path. Paths without a
// label use their last segment.
func WithLabels(labels map[string]string) Option {
	return func(s *Session) {
		for path, label := range labels {
			s.labels[path] = label
		}
	}
}

// WithSecretFields masks input for the given paths.
func WithSecretFields(paths ...string) Option {
	return func(s *Session) {
		for _, path := range paths {
			s.secret[path] = true
		}
	}
}

// WithMaxAttempts bounds how often a single field is re-asked while it
// stays invalid. Values below one are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithTheme applies optional message prefixes.
func WithTheme(theme Theme) Option {
	return func(s *Session) {
		s.theme = theme
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}
