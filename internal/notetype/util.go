package notetype

import (
	"os"
	"strings"
)

func vfsIsNotExist(err error) bool {
	return os.IsNotExist(err)
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
