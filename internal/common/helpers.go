package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ARKDecimals is the number of decimals of one ARK (arktoshi)
const ARKDecimals = 8

// ArktoshiToARK converts arktoshi to an ARK string without float precision loss
func ArktoshiToARK(arktoshi uint64) string {
	return formatWithDecimals(arktoshi, ARKDecimals)
}

// Amount is an arktoshi value that decodes from a JSON number or a numeric string
type Amount uint64

// UnmarshalJSON accepts 100, "100" and null
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}

	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s: must be a whole number of arktoshi", data)
	}
	*a = Amount(n)
	return nil
}

// String renders the amount in ARK
func (a Amount) String() string {
	return ArktoshiToARK(uint64(a))
}

// formatWithDecimals converts integer to decimal string by inserting decimal point
// Example: formatWithDecimals(2500000000, 8) = "25.00000000"
func formatWithDecimals(value uint64, decimals int) string {
	s := strconv.FormatUint(value, 10)

	// Pad with leading zeros if needed
	for len(s) <= decimals {
		s = "0" + s
	}

	pos := len(s) - decimals
	return s[:pos] + "." + s[pos:]
}
