package httpx

import (
	"net/http"
	"strconv"

	apperrors "github.com/target/bulkmove/internal/errors"
)

// queryInt returns the integer value of a query param, def when absent, or a validation error.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.ValidationField(key, key+" must be an integer")
	}
	return i, nil
}

// ParseLimitOffset parses limit and offset, clamping limit into [1, maxLimit] and offset to >= 0.
func ParseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int, error) {
	maxLimit = max(maxLimit, 1)
	lim, err := queryInt(r, "limit", defLimit)
	if err != nil {
		return 0, 0, err
	}
	off, err := queryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return min(max(lim, 1), maxLimit), max(off, 0), nil
}
