package store

import "strconv"

func encodeInt64(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}

func decodeInt64(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
