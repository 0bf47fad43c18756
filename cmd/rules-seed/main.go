// Command rules-seed loads assignment rules from a YAML file.
//
//	rules-seed -file rules.yaml [-actor ops@fantopark.com] [-dry-run]
//
// Rules whose name already exists are skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"fantopark_backend/internal/assignment/repository"
	"fantopark_backend/internal/assignment/service"
	"fantopark_backend/internal/assignment/transport"
	"fantopark_backend/platform/config"
	"fantopark_backend/platform/db"
	"fantopark_backend/platform/logger"
	"fantopark_backend/platform/validator"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Rules []seedRule `yaml:"rules"`
}

type seedRule struct {
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description"`
	Priority       *int           `yaml:"priority"`
	Active         *bool          `yaml:"active"`
	Conditions     map[string]any `yaml:"conditions"`
	ConditionLogic string         `yaml:"condition_logic"`
	Strategy       string         `yaml:"strategy"`
	Assignees      []seedAssignee `yaml:"assignees"`
}

type seedAssignee struct {
	Identity string `yaml:"identity"`
	Weight   *int   `yaml:"weight"`
}

func (r seedRule) request() transport.RuleRequest {
	req := transport.RuleRequest{
		Name:               r.Name,
		Description:        r.Description,
		Priority:           r.Priority,
		IsActive:           r.Active,
		Conditions:         r.Conditions,
		ConditionLogic:     strings.ToUpper(r.ConditionLogic),
		AssignmentStrategy: r.Strategy,
	}
	for _, a := range r.Assignees {
		req.Assignees = append(req.Assignees, transport.AssigneeDTO{Identity: a.Identity, Weight: a.Weight})
	}
	return req
}

func main() {
	file := flag.String("file", "rules.yaml", "YAML file with a top-level rules list")
	actor := flag.String("actor", "rules-seed", "recorded as the rule creator")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing")
	flag.Parse()

	if err := run(*file, *actor, *dryRun); err != nil {
		fmt.Fprintln(os.Stderr, "rules-seed:", err)
		os.Exit(1)
	}
}

func run(path, actor string, dryRun bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(seed.Rules) == 0 {
		return fmt.Errorf("%s contains no rules", path)
	}

	val := validator.New()
	for i, r := range seed.Rules {
		if err := val.Struct(r.request()); err != nil {
			return fmt.Errorf("rule %d (%q): %w", i+1, r.Name, err)
		}
	}
	if dryRun {
		fmt.Printf("%d rules valid\n", len(seed.Rules))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Env)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	rules := service.NewRuleService(repository.New(pool), log)
	existing, err := rules.List(ctx, true)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing.Items))
	for _, r := range existing.Items {
		seen[strings.ToLower(r.Name)] = struct{}{}
	}

	created := 0
	for _, r := range seed.Rules {
		if _, ok := seen[strings.ToLower(r.Name)]; ok {
			log.Info("rule exists, skipping", "name", r.Name)
			continue
		}
		resp, err := rules.Create(ctx, r.request(), actor)
		if err != nil {
			return fmt.Errorf("create %q: %w", r.Name, err)
		}
		created++
		log.Info("rule created", "id", resp.ID, "name", resp.Name, "priority", resp.Priority)
	}

	fmt.Printf("%d created, %d skipped\n", created, len(seed.Rules)-created)
	return nil
}
