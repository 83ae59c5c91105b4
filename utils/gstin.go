package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// StateCodes maps GST state codes to state/UT names. Loaded once at init
// and never mutated; new codes are occasionally issued, so an unknown
// code is a warning rather than a hard failure.
var StateCodes = map[string]string{
	"01": "Jammu & Kashmir", "02": "Himachal Pradesh", "03": "Punjab", "04": "Chandigarh",
	"05": "Uttarakhand", "06": "Haryana", "07": "Delhi", "08": "Rajasthan",
	"09": "Uttar Pradesh", "10": "Bihar", "11": "Sikkim", "12": "Arunachal Pradesh",
	"13": "Nagaland", "14": "Manipur", "15": "Mizoram", "16": "Tripura",
	"17": "Meghalaya", "18": "Assam", "19": "West Bengal", "20": "Jharkhand",
	"21": "Odisha", "22": "Chhattisgarh", "23": "Madhya Pradesh", "24": "Gujarat",
	"27": "Maharashtra", "29": "Karnataka", "30": "Goa", "32": "Kerala",
	"33": "Tamil Nadu", "36": "Telangana", "37": "Andhra Pradesh",
}

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Positions 1-2 digits, 3-7 letters, 8-11 digits, 12 letter,
// 13 alphanumeric entity code, 14 literal 'Z', 15 alphanumeric check digit.
var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][0-9A-Z]Z[0-9A-Z]$`)

// GSTINValidation is the structural and checksum outcome for a candidate GSTIN.
type GSTINValidation struct {
	Normalized    string
	StructureOK   bool
	ChecksumOK    bool
	StateCode     string
	StateName     string
	StateKnown    bool
	PAN           string
	ExpectedCheck string
	ActualCheck   string
	Errors        []string
}

// GSTINChecksumChar computes the 15th GSTIN character from the first 14.
// Each character maps to its base-36 value, weights alternate 1 and 2 from
// the leftmost position, and every weighted product folds to quotient plus
// remainder of division by 36 before summing.
func GSTINChecksumChar(gstin14 string) (string, error) {
	total := 0
	for idx, ch := range gstin14 {
		val := strings.IndexRune(base36Alphabet, ch)
		if val < 0 {
			return "", fmt.Errorf("character %q is not base-36", ch)
		}
		weight := 1
		if idx%2 == 1 {
			weight = 2
		}
		prod := val * weight
		total += prod/36 + prod%36
	}
	checkVal := (36 - total%36) % 36
	return string(base36Alphabet[checkVal]), nil
}

// ValidateGSTIN checks a candidate GSTIN structurally and against its
// embedded checksum. Structure and checksum are reported independently; a
// string that cannot be checksum-checked fails both rather than erroring.
func ValidateGSTIN(raw string) GSTINValidation {
	v := GSTINValidation{Normalized: strings.ToUpper(strings.TrimSpace(raw))}
	g := v.Normalized

	if g == "" {
		v.Errors = append(v.Errors, "missing GSTIN")
		return v
	}

	if len(g) != 15 {
		v.Errors = append(v.Errors, fmt.Sprintf("GSTIN must be 15 characters, got %d", len(g)))
		return v
	}

	if !gstinPattern.MatchString(g) {
		v.Errors = append(v.Errors, "GSTIN does not match the required pattern (2 digits, 5 letters, 4 digits, 1 letter, entity code, 'Z', check digit)")
		return v
	}
	v.StructureOK = true
	v.PAN = g[2:12]

	v.StateCode = g[:2]
	if name, ok := StateCodes[v.StateCode]; ok {
		v.StateName = name
		v.StateKnown = true
	} else {
		v.Errors = append(v.Errors, fmt.Sprintf("unrecognized state code %q", v.StateCode))
	}

	expected, err := GSTINChecksumChar(g[:14])
	if err != nil {
		// Unreachable once the pattern matched, kept for totality.
		v.Errors = append(v.Errors, err.Error())
		return v
	}
	v.ExpectedCheck = expected
	v.ActualCheck = g[14:]
	if v.ActualCheck == expected {
		v.ChecksumOK = true
	} else {
		v.Errors = append(v.Errors, fmt.Sprintf("checksum mismatch: expected %q, got %q", expected, v.ActualCheck))
	}

	return v
}

// StateNameForCode resolves a two-digit GST state code, ok=false when unknown.
func StateNameForCode(code string) (string, bool) {
	name, ok := StateCodes[code]
	return name, ok
}
