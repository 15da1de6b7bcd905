package assert

func NotNil(value any, name ...string) {
	if value == nil {
		if len(name) > 0 {
			panic("expected " + name[0] + " to be not nil")
		}
		panic("expected value to be not nil")
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}
