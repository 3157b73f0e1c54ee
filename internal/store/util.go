package store

import (
	"os"
	"strings"
)

func bytesReader(s string) *strings.Reader {
	return strings.NewReader(s)
}

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}
