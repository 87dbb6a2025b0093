package main

import "errors"

var (
	ErrReadConfig   = errors.New("read config file")
	ErrNoFixtures   = errors.New("no fixtures configured; pass --fixtures or set HTTPSTUBS_FIXTURES")
	ErrLoadFixtures = errors.New("load fixtures")
	ErrNoMatch      = errors.New("no stub matches the request")
	ErrBuildRequest = errors.New("build request")
	ErrBadHeader    = errors.New("header must be formatted as 'Name: value'")
	ErrOpenEvents   = errors.New("open event output")
	ErrFetch        = errors.New("fetch")
	ErrNoJournal    = errors.New("no journal configured; pass --journal or set HTTPSTUBS_JOURNAL")
)
