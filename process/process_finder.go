package process

// ProcessFinder defines operations for discovering processes
type ProcessFinder interface {
	// FindProcessByPID finds a process by its PID
	FindProcessByPID(pid ProcessID) (*ProcessInfo, error)

	// FindProcessByName finds processes by their name (exact match)
	FindProcessByName(name string) ([]ProcessInfo, error)

	// FindProcessByNamePattern finds processes by their name (pattern match)
	FindProcessByNamePattern(pattern string) ([]ProcessInfo, error)
}

// FindOne returns the only process named name. More than one match is
// reported as *AmbiguousProcessError.
func FindOne(finder ProcessFinder, name string) (ProcessInfo, error) {
	matches, err := finder.FindProcessByName(name)
	if err != nil {
		return ProcessInfo{}, err
	}
	return SelectOne(name, matches)
}
