package scoring

// DefaultSignals returns the standard signal set with default weights.
func DefaultSignals() []SignalConfig {
	return []SignalConfig{
		{Key: "node_version", Kind: KindVersion, Weight: 3, Ecosystem: "node", LTS: "22.0.0"},
		{Key: "python_version", Kind: KindVersion, Weight: 3, Ecosystem: "python", Table: NewVersionTable(
			AtLeast("3.12.0", GradeA),
			AtLeast("3.11.0", GradeB),
			AtLeast("3.10.0", GradeC),
			AtLeast("3.9.0", GradeD),
			AtLeast("0.0.0", GradeF),
		)},
		{Key: "terraform_version", Kind: KindVersion, Weight: 2, Ecosystem: "terraform", Table: NewVersionTable(
			AtLeast("1.9.0", GradeA),
			AtLeast("1.7.0", GradeB),
			AtLeast("1.5.0", GradeC),
			AtLeast("1.3.0", GradeD),
			AtLeast("0.0.0", GradeF),
		)},
		{Key: "stale_branches", Kind: KindBranchCount, Weight: 2, Query: StaleBranchQuery(), Table: CountGrades()},
		{Key: "dependabot_branches", Kind: KindBranchCount, Weight: 2, Query: DependabotBranchQuery(), Table: CountGrades()},
		{Key: "security_alerts", Kind: KindSeverity, Weight: 5, Prefix: "security_alerts", Table: SeverityGrades()},
		{Key: "missing_codeowners", Kind: KindRaw, Weight: 1, Raw: "missing_codeowners", Table: PresenceGrades()},
		{Key: "npm_packages", Kind: KindRelative, Weight: 2, Dependency: "npm"},
		{Key: "docker_images", Kind: KindRelative, Weight: 2, Dependency: "docker"},
		{Key: "terraform_modules", Kind: KindRelative, Weight: 1, Dependency: "terraform_module"},
		{Key: "github_actions", Kind: KindRelative, Weight: 1, Dependency: "github_action"},
	}
}
