// Package config resolves the settings of a scrape run.
//
// Sources are applied in order of increasing precedence: defaults, a YAML
// file, .env files, FORUMSCRAPER_* environment variables and finally flags.
//
//	cfg, err := config.Load("", map[string]interface{}{
//		"threads": []string{"https://forum.example.com/threads/123"},
//		"workers": 4,
//	})
//
// Without an explicit path the first of SearchPaths that exists is read.
package config
