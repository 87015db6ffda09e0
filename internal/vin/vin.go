// Package vin проверяет синтаксис VIN и штрихкодов. Чистые функции, без состояния.
package vin

import (
	"regexp"
	"strings"

	"github.com/BearBump/VinBox/internal/models"
)

var (
	vinRE     = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	barcodeRE = regexp.MustCompile(`^[0-9]{8,14}$`)
)

// Normalize только переводит в верхний регистр. Пробелы не трогает:
// обрезать ввод должен тот, кто его принимает (флаг CLI, тело запроса).
func Normalize(s string) string {
	return strings.ToUpper(s)
}

// IsValid: ровно 17 символов из [A-Z0-9] без I, O, Q (после Normalize).
// Строка с пробелами или переводом строки по краям невалидна.
func IsValid(s string) bool {
	return vinRE.MatchString(Normalize(s))
}

// IsBarcode: от 8 до 14 цифр.
func IsBarcode(s string) bool {
	return barcodeRE.MatchString(s)
}

// Matches проверяет payload по грамматике его типа.
func Matches(kind models.ScanKind, payload string) bool {
	switch kind {
	case models.ScanKindVin:
		return IsValid(payload)
	case models.ScanKindBarcode:
		return IsBarcode(payload)
	default:
		return false
	}
}

// Транслитерация и веса для контрольной цифры (позиция 9) североамериканских VIN.
var (
	translit = map[byte]int{
		'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
		'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
		'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
	}
	weights = [17]int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}
)

// CheckDigit считает контрольный символ ('0'-'9' или 'X') для синтаксически верного VIN.
// Для невалидной строки возвращает 0.
func CheckDigit(s string) byte {
	v := Normalize(s)
	if !vinRE.MatchString(v) {
		return 0
	}
	sum := 0
	for i := 0; i < 17; i++ {
		sum += charValue(v[i]) * weights[i]
	}
	r := sum % 11
	if r == 10 {
		return 'X'
	}
	return byte('0' + r)
}

// CheckDigitOK: только информативно: вне Северной Америки контрольной цифры нет,
// поэтому в IsValid эта проверка не участвует.
func CheckDigitOK(s string) bool {
	v := Normalize(s)
	d := CheckDigit(v)
	return d != 0 && v[8] == d
}

func charValue(c byte) int {
	if c >= '0' && c <= '9' {
		return int(c - '0')
	}
	return translit[c]
}
