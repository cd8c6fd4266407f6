package source

import "context"

// Static is an in-process source whose content is fixed at construction.
type Static struct {
	SourceID string
	Version  string
	Provided Defaults

	ScreenList []Screen
	Raw        []RawItem
	Hidden     []string
}

var (
	_ Source   = (*Static)(nil)
	_ Provider = (*Static)(nil)
)

func (s *Static) ID() string { return s.SourceID }

func (s *Static) Identity() string { return s.SourceID + "@" + s.Version }

func (s *Static) Defaults() Defaults { return s.Provided }

func (s *Static) Screens(_ context.Context, _ string) ([]Screen, error) {
	return s.ScreenList, nil
}

func (s *Static) RawItems(_ context.Context, _ string) ([]RawItem, error) {
	return s.Raw, nil
}

func (s *Static) NonIndexableKeys(_ context.Context) ([]string, error) {
	return s.Hidden, nil
}
