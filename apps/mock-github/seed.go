package main

// seedRepos populates the store with a documentation repo shaped like what
// scribe edits in production: a .scribe.yml policy at the root and a docs
// tree with a few pages and one asset directory.
func seedRepos(s *store) {
	s.seedRepo("acme/handbook", map[string]string{
		".scribe.yml":             scribeConfig(),
		"README.md":               readme(),
		"docs/index.md":           indexPage(),
		"docs/getting-started.md": gettingStarted(),
		"docs/guides/deploys.md":  deploysGuide(),
	})

	// A repo without .scribe.yml, so default policy applies.
	s.seedRepo("acme/runbooks", map[string]string{
		"oncall.md":               "# On-call\n\nRotation and escalation contacts.\n",
		"postmortems/template.md": "# Postmortem\n\n## Timeline\n\n## Impact\n\n## Action items\n",
	})
}

func scribeConfig() string {
	return `docsRoot: docs
assetsDir: assets
allowedExtensions:
  - .md
  - .mdx
`
}

func readme() string {
	return `# Acme Handbook

Company handbook. Pages under docs/ are edited through Scribe; everything
else goes through a normal pull request.
`
}

func indexPage() string {
	return `# Handbook

Welcome to the Acme handbook.

- [Getting started](./getting-started.md)
- [Deploys](./guides/deploys.md)
`
}

func gettingStarted() string {
	return `# Getting started

Clone the monorepo, install the toolchain, and run ` + "`make dev`" + `.

Ask in #eng-onboarding if anything here is stale.
`
}

func deploysGuide() string {
	return `# Deploys

Deploys ship from main on every merge. A rollback is a revert commit, not a
manual action in the dashboard.

## Freeze windows

Check the release calendar before merging on Fridays.
`
}
