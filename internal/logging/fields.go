package logging

import "time"

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field          { return Field{Key: key, Value: value} }
func Int(key string, value int) Field         { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Component(name string) Field   { return String("component", name) }
func Rank(r int) Field              { return Int("rank", r) }
func RunID(id string) Field         { return String("run_id", id) }
func Iteration(i int) Field         { return Int("iteration", i) }
func Op(op string) Field            { return String("op", op) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
