package models

import (
	"errors"
	"fmt"
)

// Base error classes. Callers match them with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNoMatch    = errors.New("no match")
	ErrNotFound   = errors.New("not found")
)

// Query and control errors. Messages are shown to API users as-is.
var (
	ErrEmptyQuery      = fmt.Errorf("%w: задан пустой поисковый запрос", ErrValidation)
	ErrUnknownSite     = fmt.Errorf("%w: указанный сайт отсутствует в конфигурационном файле", ErrValidation)
	ErrOutOfScope      = fmt.Errorf("%w: данная страница находится за пределами сайтов, указанных в конфигурационном файле", ErrValidation)
	ErrLemmaNotIndexed = fmt.Errorf("%w: по запросу ничего не найдено", ErrNoMatch)
	ErrTooCommon       = fmt.Errorf("%w: запрос состоит только из слишком частых слов", ErrNoMatch)
	ErrAlreadyRunning  = errors.New("индексация уже запущена")
	ErrNotRunning      = errors.New("индексация не запущена")
)
