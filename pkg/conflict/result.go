package conflict

// Result is the answer to a data file overwrite prompt.
type Result int

const (
	ApplyOnce Result = iota
	SkipOnce
	ApplyAll
	SkipAll
	ApplyFolder
	SkipFolder
	ApplyMod
	SkipMod
)

var resultNames = map[Result]string{
	ApplyOnce:   "apply",
	SkipOnce:    "skip",
	ApplyAll:    "apply-all",
	SkipAll:     "skip-all",
	ApplyFolder: "apply-folder",
	SkipFolder:  "skip-folder",
	ApplyMod:    "apply-mod",
	SkipMod:     "skip-mod",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "invalid"
}

// TextResult is the answer to a settings overwrite prompt.
type TextResult int

const (
	Yes TextResult = iota
	No
	YesToAll
	NoToAll
)

func (r TextResult) String() string {
	switch r {
	case Yes:
		return "yes"
	case No:
		return "no"
	case YesToAll:
		return "yes-to-all"
	case NoToAll:
		return "no-to-all"
	default:
		return "invalid"
	}
}
