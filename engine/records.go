package engine

// Composition is the in-progress input.
type Composition struct {
	Preedit   string
	Length    int32
	CursorPos int32
	SelStart  int32
	SelEnd    int32
}

// Commit is text the engine has committed.
type Commit struct {
	Text string
}

// Candidate is one menu entry.
type Candidate struct {
	Text    string
	Comment string
}

// Menu is the current candidate page.
type Menu struct {
	Candidates                []Candidate
	PageSize                  int32
	PageNo                    int32
	HighlightedCandidateIndex int32
	NumCandidates             int32
	IsLastPage                bool
}

// Context is a snapshot of composition and menu.
type Context struct {
	CommitTextPreview string
	SelectLabels      []string
	Menu              Menu
	Composition       Composition
}

// Status is the engine mode. IsDisabled is engine state; the remaining
// six flags are the user-visible modes.
type Status struct {
	SchemaID      string
	SchemaName    string
	IsDisabled    bool
	IsComposing   bool
	IsASCIIMode   bool
	IsFullShape   bool
	IsSimplified  bool
	IsTraditional bool
	IsASCIIPunct  bool
}

// SchemaItem is an entry of the schema list.
type SchemaItem struct {
	ID   string
	Name string
}
