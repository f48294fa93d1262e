package watcher

// ChangePlan says what a batch of changes requires of the session.
type ChangePlan struct {
	ReloadConfig bool
	Rebuild      bool
	ChangedFiles []string
}

// AnalyzeChanges folds change events into a plan. A config change implies
// a rebuild since layout and analysis settings may have moved.
func AnalyzeChanges(events ...ChangeEvent) *ChangePlan {
	plan := &ChangePlan{ChangedFiles: make([]string, 0)}
	for _, event := range events {
		plan.ChangedFiles = append(plan.ChangedFiles, event.Paths...)
		switch event.Type {
		case ChangeTypeConfig:
			plan.ReloadConfig = true
			plan.Rebuild = true
		case ChangeTypeSource:
			plan.Rebuild = true
		}
	}
	return plan
}
