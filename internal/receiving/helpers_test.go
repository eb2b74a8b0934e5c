package receiving

import "time"

func ptr[T any](v T) *T {
	return &v
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
