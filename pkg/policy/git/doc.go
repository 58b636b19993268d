// Package git provides a git-sourced policy ingestion mode for "eunomia
// build". It clones a repository holding .rego policy source, watches it
// for new commits, and triggers a rebuild callback when policy files
// change, with safe rollback to the last-known-good commit on failure.
//
// # Basic Usage
//
//	cfg := &config.GitSourceConfig{
//		Repository: "https://github.com/acme/policies.git",
//		Branch:     "main",
//		Path:       "policies/",
//	}
//
//	repo, err := git.NewRepository(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := repo.Clone(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// # Change Detection
//
//	watcher := git.NewWatcher(repo, 30*time.Second, 60*time.Second, rebuildFn)
//	watcher.Start(context.Background())
//
// # Authentication
//
// Supports token-based HTTPS, SSH key-based, and unauthenticated access
// to public repositories, selected by GitAuthConfig.Type.
package git
