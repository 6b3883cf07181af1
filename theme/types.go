package theme

// Metadata is parsed from a comment block at the top of a theme CSS file.
type Metadata struct {
	Theme   string
	Scheme  string
	Accent  string
	Display string
	Border  bool
}

// Info describes a theme CSS file and the color schemes it defines.
type Info struct {
	Name    string
	Display string
	Path    string
	BaseCSS string
	Schemes map[string]Scheme
}

// Scheme is one color scheme within a theme.
type Scheme struct {
	Name    string
	Accent  string
	Display string
	Border  bool
	CSS     string
}
