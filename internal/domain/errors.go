package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz is returned when a loaded quiz has no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrUnsupportedDriver is returned for an unknown storage driver in config.
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
	// ErrUnsupportedFormat is returned for question files that are neither JSON nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported question file format")
)
