package engine

// Traits configures engine startup.
type Traits struct {
	SharedDataDir string
	UserDataDir   string
	AppName       string
	AppVersion    string
	FullCheck     bool
}

// Handler receives engine notifications.
type Handler func(messageType, messageValue string)

// Engine is the input engine driven by the bridge. Methods other than
// Startup, SetNotificationHandler and Version may only be called between
// Startup and Shutdown.
type Engine interface {
	Startup(traits Traits) error
	Shutdown()
	Deploy() error
	SyncUserData() error

	ProcessKey(keycode, mask int) bool
	CommitComposition() bool
	ClearComposition()

	// Commit returns committed text not yet read, clearing it.
	Commit() (Commit, bool)
	Context() (Context, bool)
	Status() (Status, bool)

	SetOption(name string, value bool)
	Option(name string) bool

	SchemaList() []SchemaItem
	CurrentSchema() string
	SelectSchema(id string) bool

	Candidates() []Candidate
	SelectCandidateOnPage(index int) bool

	RawInput() string
	CaretPos() int
	SetCaretPos(pos int)

	// Config returns the value at a slash-separated key path of a config
	// file, as a tree of map[string]any, []any, string, int and bool.
	Config(configID, key string) (any, bool)

	SetNotificationHandler(h Handler)
	Version() string
}
