package http

import (
	"time"

	xutil "ClpWatch/pkg/util"
)

// ParseTime parses a query timestamp. See util.ParseTime for the accepted forms.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }
