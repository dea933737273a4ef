package keyvalue

// T is a key/value pair of strings, used to pass structured context
// across diagnostic boundaries without forcing a logging dependency.
type T struct {
	Key   string
	Value string
}

func KV(key, value string) T {
	return T{
		Key:   key,
		Value: value,
	}
}
