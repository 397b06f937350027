package weather

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// Delimiter separates the four payload fields.
	Delimiter = ","

	payloadFields = 4
)

// ErrMalformedPayload is returned by Decode for anything that is not a complete snapshot.
var ErrMalformedPayload = errors.New("malformed weather payload")

// Encode renders s as "conditionCode,highTemp,lowTemp,lastUpdated" in UTF-8.
//
// The format does not escape the delimiter. A field containing a comma produces a payload
// that Decode rejects; Snapshot's validate tags guard the fields that come from users.
func Encode(s Snapshot) []byte {
	record := strings.Join([]string{
		s.ConditionText(),
		s.HighTemp,
		s.LowTemp,
		s.LastUpdated,
	}, Delimiter)
	return []byte(record)
}

// Decode parses a payload produced by Encode.
func Decode(payload []byte) (Snapshot, error) {
	if !utf8.Valid(payload) {
		return Snapshot{}, fmt.Errorf("%w: not valid utf-8", ErrMalformedPayload)
	}

	fields := strings.Split(string(payload), Delimiter)
	if len(fields) != payloadFields {
		return Snapshot{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedPayload, payloadFields, len(fields))
	}

	code, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: condition code %q", ErrMalformedPayload, fields[0])
	}

	return Snapshot{
		ConditionCode: code,
		HighTemp:      fields[1],
		LowTemp:       fields[2],
		LastUpdated:   fields[3],
	}, nil
}

// upper builds a fresh Caser per call; a Caser must not be shared between goroutines.
func upper(s string) string {
	return cases.Upper(language.English).String(s)
}
