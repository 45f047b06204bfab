package env

import (
	"encoding/base64"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func is a built-in placeholder function.
type Func func(args []string) any

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

func defaultFuncs() map[string]Func {
	return map[string]Func{
		"uuid":         func([]string) any { return uuid.NewString() },
		"now":          func([]string) any { return time.Now().UTC().Format(time.RFC3339) },
		"timestamp":    func([]string) any { return time.Now().Unix() },
		"timestampMs":  func([]string) any { return time.Now().UnixMilli() },
		"random":       funcRandom,
		"randomString": funcRandomString,
		"base64":       funcBase64,
		"upper":        func(args []string) any { return strings.ToUpper(strings.Join(args, "")) },
		"lower":        func(args []string) any { return strings.ToLower(strings.Join(args, "")) },
	}
}

// callFunc evaluates name(args...) expressions.
func callFunc(funcs map[string]Func, expr string) (any, bool) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false
	}
	fn, ok := funcs[matches[1]]
	if !ok {
		return nil, false
	}
	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}
	return fn(args), true
}

// parseArgs splits a comma separated argument list, honouring quotes.
func parseArgs(s string) []string {
	var (
		args      []string
		current   strings.Builder
		quoteChar byte
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quoteChar == 0 && (ch == '"' || ch == '\''):
			quoteChar = ch
		case quoteChar != 0 && ch == quoteChar:
			quoteChar = 0
		case quoteChar == 0 && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}

func funcRandom(args []string) any {
	lo, hi := 0, 100
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			lo = v
		}
		if v, err := strconv.Atoi(args[1]); err == nil {
			hi = v
		}
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return rand.IntN(hi-lo+1) + lo
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func funcRandomString(args []string) any {
	length := 16
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			length = v
		}
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}
	return string(b)
}

func funcBase64(args []string) any {
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(args, "")))
}
