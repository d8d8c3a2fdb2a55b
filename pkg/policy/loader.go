package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Loader handles loading protection rules from files and directories.
// Raw .rego and .json rules are taken as written; .yaml files hold the
// declarative form and are compiled into Rego here.
type Loader struct {
	logger  zerolog.Logger
	cache   map[string]*Rule
	mu      sync.RWMutex
	watcher *fsnotify.Watcher
}

// NewLoader creates a new rule loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
		cache:  make(map[string]*Rule),
	}
}

// LoadFromPaths loads rules from a list of file or directory paths.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Rule, error) {
	var allRules []Rule

	for _, path := range paths {
		rules, err := l.loadFromPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		allRules = append(allRules, rules...)
	}

	l.logger.Info().
		Int("total", len(allRules)).
		Int("sources", len(paths)).
		Msg("Rules loaded from paths")

	return allRules, nil
}

// loadFromPath loads rules from a single path (file or directory).
func (l *Loader) loadFromPath(ctx context.Context, path string) ([]Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return l.loadFromDirectory(ctx, path)
	}

	rule, err := l.loadFromFile(ctx, path)
	if err != nil {
		return nil, err
	}

	return []Rule{*rule}, nil
}

// isRuleFile reports whether the path has a loadable rule extension.
func isRuleFile(path string) bool {
	switch {
	case strings.HasSuffix(path, ".rego"),
		strings.HasSuffix(path, ".json"),
		strings.HasSuffix(path, ".yaml"),
		strings.HasSuffix(path, ".yml"):
		return true
	}
	return false
}

// loadFromDirectory loads all rule files from a directory recursively.
func (l *Loader) loadFromDirectory(ctx context.Context, dirPath string) ([]Rule, error) {
	var rules []Rule

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		if !isRuleFile(path) {
			return nil
		}

		rule, err := l.loadFromFile(ctx, path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to load rule file")
			return nil // Continue processing other files
		}

		rules = append(rules, *rule)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return rules, nil
}

// loadFromFile loads a rule from a single file.
func (l *Loader) loadFromFile(ctx context.Context, filePath string) (*Rule, error) {
	// Check cache first
	l.mu.RLock()
	if cached, exists := l.cache[filePath]; exists {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rule *Rule

	switch {
	case strings.HasSuffix(filePath, ".rego"):
		rule = l.parseRegoFile(filePath, data)
	case strings.HasSuffix(filePath, ".json"):
		rule, err = l.parseJSONFile(data)
		if err != nil {
			return nil, err
		}
	case strings.HasSuffix(filePath, ".yaml"), strings.HasSuffix(filePath, ".yml"):
		rule, err = l.parseYAMLFile(filePath, data)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filePath)
	}

	l.mu.Lock()
	l.cache[filePath] = rule
	l.mu.Unlock()

	l.logger.Debug().
		Str("path", filePath).
		Str("rule", rule.Name).
		Msg("Rule loaded from file")

	return rule, nil
}

// parseRegoFile parses a .rego file into a Rule.
func (l *Loader) parseRegoFile(filePath string, data []byte) *Rule {
	base := filepath.Base(filePath)
	name := strings.TrimSuffix(base, ".rego")

	description := l.extractDescription(string(data))

	return &Rule{
		Name:        name,
		Description: description,
		Rego:        string(data),
		Enabled:     true,
		Tags:        []string{},
		Metadata: map[string]interface{}{
			"source": filePath,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// parseJSONFile parses a JSON rule definition. An omitted enabled field
// means enabled.
func (l *Loader) parseJSONFile(data []byte) (*Rule, error) {
	var raw struct {
		Rule
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON rule: %w", err)
	}

	rule := raw.Rule
	rule.Enabled = raw.Enabled == nil || *raw.Enabled
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = time.Now()
	}

	return &rule, nil
}

// parseYAMLFile parses a declarative rule file and compiles it to Rego.
func (l *Loader) parseYAMLFile(filePath string, data []byte) (*Rule, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rule: %w", err)
	}

	if file.Name == "" {
		base := filepath.Base(filePath)
		file.Name = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	}

	rule, err := CompileRuleFile(&file)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rule file %s: %w", filePath, err)
	}

	rule.Metadata = map[string]interface{}{
		"source": filePath,
	}

	return rule, nil
}

// Rego fragments emitted for declarative rule files. %[1]q is quoted with
// Go syntax, which Rego string literals share.
const (
	regoTagValueRule = `
deny contains violation if {
	input.resource
	resource := input.resource
	resource.freeform_tags[%[1]q] == %[2]q
	violation := {
		"message": sprintf("resource %%s carries protected tag %%s", [resource.identifier, %[1]q]),
		"resource": resource.identifier,
	}
}
`

	regoTagPresenceRule = `
deny contains violation if {
	input.resource
	resource := input.resource
	resource.freeform_tags[%[1]q]
	violation := {
		"message": sprintf("resource %%s carries protected tag %%s", [resource.identifier, %[1]q]),
		"resource": resource.identifier,
	}
}
`

	regoNamePrefixRule = `
deny contains violation if {
	input.resource
	resource := input.resource
	startswith(lower(resource.display_name), %[1]q)
	violation := {
		"message": sprintf("resource name %%q matches guarded prefix %%q", [resource.display_name, %[1]q]),
		"resource": resource.identifier,
	}
}
`

	regoResourceTypeRule = `
deny contains violation if {
	input.resource
	resource := input.resource
	resource.resource_type == %[1]q
	violation := {
		"message": sprintf("resource type %%s is protected", [resource.resource_type]),
		"resource": resource.identifier,
	}
}
`

	regoMinimumAgeRule = `
deny contains violation if {
	input.resource
	resource := input.resource
	created := time.parse_rfc3339_ns(resource.time_created)
	time.now_ns() - created < %[1]d
	violation := {
		"message": sprintf("resource %%s is younger than the minimum age of %[2]s", [resource.identifier]),
		"resource": resource.identifier,
	}
}
`
)

// CompileRuleFile translates a declarative rule file into a Rego rule.
// Every protect condition becomes its own deny block; any match protects.
func CompileRuleFile(file *RuleFile) (*Rule, error) {
	if file.Name == "" {
		return nil, fmt.Errorf("rule file has no name")
	}

	spec := file.Protect
	if len(spec.Tags) == 0 && len(spec.NamePrefixes) == 0 &&
		len(spec.ResourceTypes) == 0 && spec.MinimumAge == "" {
		return nil, fmt.Errorf("rule file %s declares nothing to protect", file.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "package ocinuke.protection.%s\n\nimport rego.v1\n", regoPackageName(file.Name))

	tagKeys := make([]string, 0, len(spec.Tags))
	for key := range spec.Tags {
		tagKeys = append(tagKeys, key)
	}
	sort.Strings(tagKeys)
	for _, key := range tagKeys {
		value := spec.Tags[key]
		if value == "*" {
			fmt.Fprintf(&b, regoTagPresenceRule, key)
		} else {
			fmt.Fprintf(&b, regoTagValueRule, key, value)
		}
	}

	for _, prefix := range spec.NamePrefixes {
		fmt.Fprintf(&b, regoNamePrefixRule, strings.ToLower(prefix))
	}

	for _, resourceType := range spec.ResourceTypes {
		fmt.Fprintf(&b, regoResourceTypeRule, resourceType)
	}

	if spec.MinimumAge != "" {
		age, err := time.ParseDuration(spec.MinimumAge)
		if err != nil {
			return nil, fmt.Errorf("invalid minimum_age %q: %w", spec.MinimumAge, err)
		}
		if age <= 0 {
			return nil, fmt.Errorf("minimum_age %q must be positive", spec.MinimumAge)
		}
		fmt.Fprintf(&b, regoMinimumAgeRule, age.Nanoseconds(), age.String())
	}

	return &Rule{
		Name:        file.Name,
		Description: file.Description,
		Rego:        b.String(),
		Enabled:     file.Enabled == nil || *file.Enabled,
		Tags:        []string{"declarative"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}, nil
}

// regoPackageName derives a valid Rego package segment from a rule name.
func regoPackageName(name string) string {
	var b strings.Builder
	b.WriteString("file_")
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// extractDescription extracts a description from leading Rego comments.
func (l *Loader) extractDescription(content string) string {
	lines := strings.Split(content, "\n")
	var description strings.Builder

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
			if comment != "" && !strings.HasPrefix(comment, "package") {
				if description.Len() > 0 {
					description.WriteString(" ")
				}
				description.WriteString(comment)
			}
		} else if trimmed != "" && description.Len() > 0 {
			// Stop at first non-comment, non-empty line
			break
		}
	}

	return description.String()
}

// LoadBundle loads a JSON rule bundle.
func (l *Loader) LoadBundle(ctx context.Context, bundlePath string) (*Bundle, error) {
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}

	l.logger.Info().
		Str("bundle", bundle.Name).
		Str("version", bundle.Version).
		Int("rules", len(bundle.Rules)).
		Msg("Rule bundle loaded")

	return &bundle, nil
}

// Watch starts watching paths for rule changes and triggers reload on change.
func (l *Loader) Watch(ctx context.Context, paths []string, reloadFn func([]Rule) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	l.watcher = watcher

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}

		if info.IsDir() {
			if err := l.watchDirectory(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			}
		} else {
			if err := watcher.Add(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch file")
			}
		}
	}

	go l.processEvents(ctx, paths, reloadFn)

	l.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching rule paths")

	return nil
}

// watchDirectory adds all directories under a root to the watcher.
func (l *Loader) watchDirectory(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return l.watcher.Add(path)
		}

		return nil
	})
}

// processEvents processes file system events and triggers reloads.
func (l *Loader) processEvents(ctx context.Context, paths []string, reloadFn func([]Rule) error) {
	// Debounce reload events
	var reloadTimer *time.Timer
	reloadDelay := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if l.watcher != nil {
				_ = l.watcher.Close()
			}
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}

			// Only reload on write or create events for rule files
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && isRuleFile(event.Name) {
				l.logger.Debug().
					Str("file", event.Name).
					Str("op", event.Op.String()).
					Msg("Rule file changed")

				// Clear cache for this file
				l.mu.Lock()
				delete(l.cache, event.Name)
				l.mu.Unlock()

				// Debounce reload
				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				reloadTimer = time.AfterFunc(reloadDelay, func() {
					if err := l.triggerReload(ctx, paths, reloadFn); err != nil {
						l.logger.Error().Err(err).Msg("Failed to reload rules")
					}
				})
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// triggerReload reloads all rules from watched paths.
func (l *Loader) triggerReload(ctx context.Context, paths []string, reloadFn func([]Rule) error) error {
	l.logger.Info().Msg("Reloading rules...")

	rules, err := l.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to reload rules: %w", err)
	}

	if err := reloadFn(rules); err != nil {
		return fmt.Errorf("failed to apply reloaded rules: %w", err)
	}

	l.logger.Info().
		Int("count", len(rules)).
		Msg("Rules reloaded")

	return nil
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// ClearCache clears the rule cache.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache = make(map[string]*Rule)
	l.logger.Debug().Msg("Rule cache cleared")
}
