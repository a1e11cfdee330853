package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"planline/internal/app"
	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/migrate"
	"planline/internal/repo"
	"planline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Planline CLI",
	Long: `Planline tracks hierarchical project schedules.
- Workspace: your .planline directory with only the database; per-project config lives in the DB or planline.yml.
- Project: owns macrostages; its dates and status roll up from the tasks below.
- Macrostage: a phase holding either stages or direct tasks, never both.
- Stage: a group of tasks, typed robot/system/not-applicable.
- Task: the leaf with user-entered start/end dates; everything above is derived.
- Shift: moving a task can cascade the move to every later task ('pl shift').
- Event log: diary of changes, view with 'pl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PLANLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(macrostageCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(shiftCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectStatusCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectConfigCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func projectCreateCmd() *cobra.Command {
	var name, id string
	var fields projectFieldFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					ID:      id,
					Name:    name,
					Fields:  fields.toFields(),
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&id, "id", "", "project id (generated when empty)")
	fields.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

type projectFieldFlags struct {
	scope, github, coordinator, automationSupport string
	requestingAgency, internalDepartment          string
	sponsoringManager, sponsoringManagerContact   string
	technicalManager, technicalManagerContact     string
}

func (f *projectFieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scope, "scope", "", "project scope")
	cmd.Flags().StringVar(&f.github, "github-link", "", "repository link")
	cmd.Flags().StringVar(&f.coordinator, "coordinator", "", "coordinator")
	cmd.Flags().StringVar(&f.automationSupport, "automation-support", "", "automation support")
	cmd.Flags().StringVar(&f.requestingAgency, "requesting-agency", "", "requesting agency")
	cmd.Flags().StringVar(&f.internalDepartment, "internal-department", "", "internal department")
	cmd.Flags().StringVar(&f.sponsoringManager, "sponsoring-manager", "", "sponsoring manager")
	cmd.Flags().StringVar(&f.sponsoringManagerContact, "sponsoring-manager-contact", "", "sponsoring manager contact")
	cmd.Flags().StringVar(&f.technicalManager, "technical-manager", "", "technical manager")
	cmd.Flags().StringVar(&f.technicalManagerContact, "technical-manager-contact", "", "technical manager contact")
}

func (f *projectFieldFlags) toFields() engine.ProjectFields {
	return engine.ProjectFields{
		Scope:                    optionalString(f.scope),
		GithubLink:               optionalString(f.github),
		Coordinator:              optionalString(f.coordinator),
		AutomationSupport:        optionalString(f.automationSupport),
		RequestingAgency:         optionalString(f.requestingAgency),
		InternalDepartment:       optionalString(f.internalDepartment),
		SponsoringManager:        optionalString(f.sponsoringManager),
		SponsoringManagerContact: optionalString(f.sponsoringManagerContact),
		TechnicalManager:         optionalString(f.technicalManager),
		TechnicalManagerContact:  optionalString(f.technicalManagerContact),
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func projectUpdateCmd() *cobra.Command {
	var name string
	var autoShift bool
	var fields projectFieldFlags
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.ProjectUpdateOptions{
					Fields:  fields.toFields(),
					ActorID: viper.GetString("actor-id"),
				}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("auto-shift") {
					opts.AutoShiftTasks = &autoShift
				}
				p, err := e.UpdateProject(ctx, e.Config.Project.ID, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().BoolVar(&autoShift, "auto-shift", false, "cascade date moves to later tasks")
	fields.register(cmd)
	return cmd
}

func projectStatusCmd() *cobra.Command {
	var value string
	var auto bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Pin or unpin project status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				manual := !auto
				p, err := e.SetProjectStatus(ctx, e.Config.Project.ID, manual, value, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "pinned status value")
	cmd.Flags().BoolVar(&auto, "auto", false, "unpin and re-infer from dates")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteProject(ctx, e.Config.Project.ID, viper.GetString("actor-id"))
			})
		},
	}
}

func projectConfigCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage project config"}
	cfg.AddCommand(projectConfigShowCmd())
	cfg.AddCommand(projectConfigImportCmd())
	return cfg
}

func projectConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective project config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
}

func projectConfigImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import project config from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				cfg, err := config.FromYAML(data)
				if err != nil {
					return err
				}
				if err := e.Repo.UpsertProjectConfig(ctx, e.Config.Project.ID, string(data), time.Now()); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to config yaml")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func macrostageCmd() *cobra.Command {
	ms := &cobra.Command{Use: "macrostage", Short: "Manage macrostages"}
	ms.AddCommand(macrostageCreateCmd())
	ms.AddCommand(macrostageListCmd())
	ms.AddCommand(macrostageRenameCmd())
	ms.AddCommand(macrostageStructureCmd())
	ms.AddCommand(macrostageReorderCmd())
	ms.AddCommand(macrostageDeleteCmd())
	return ms
}

func macrostageCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create macrostage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CreateMacroStage(ctx, e.Config.Project.ID, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "macrostage name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func macrostageListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List macrostages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListMacroStages(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func macrostageRenameCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "rename <macrostage-id>",
		Short: "Rename macrostage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.RenameMacroStage(ctx, args[0], name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func macrostageStructureCmd() *cobra.Command {
	var structure string
	cmd := &cobra.Command{
		Use:   "structure <macrostage-id>",
		Short: "Select stages or direct tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.SetMacroStageStructure(ctx, args[0], structure, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&structure, "type", "", "stages or tasks")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func macrostageReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <macrostage-id>...",
		Short: "Reorder macrostages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ReorderMacroStages(ctx, e.Config.Project.ID, args, viper.GetString("actor-id")); err != nil {
					return err
				}
				items, err := e.Repo.ListMacroStages(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func macrostageDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <macrostage-id>",
		Short: "Delete macrostage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteMacroStage(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func stageCmd() *cobra.Command {
	st := &cobra.Command{Use: "stage", Short: "Manage stages"}
	st.AddCommand(stageCreateCmd())
	st.AddCommand(stageListCmd())
	st.AddCommand(stageUpdateCmd())
	st.AddCommand(stageStatusCmd())
	st.AddCommand(stageReorderCmd())
	st.AddCommand(stageDeleteCmd())
	return st
}

func stageCreateCmd() *cobra.Command {
	var macrostage, name, stageType, scope, tools, otherTools string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateStage(ctx, engine.StageCreateOptions{
					MacroStageID: macrostage,
					Name:         name,
					StageType:    stageType,
					Scope:        optionalString(scope),
					Tools:        optionalString(tools),
					OtherTools:   optionalString(otherTools),
					ActorID:      viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&macrostage, "macrostage", "", "owning macrostage id")
	cmd.Flags().StringVar(&name, "name", "", "stage name")
	cmd.Flags().StringVar(&stageType, "type", "not-applicable", "robot, system or not-applicable")
	cmd.Flags().StringVar(&scope, "scope", "", "stage scope (robot/system only)")
	cmd.Flags().StringVar(&tools, "tools", "", "tool tag (robot/system only)")
	cmd.Flags().StringVar(&otherTools, "other-tools", "", "free-form tools (robot/system only)")
	_ = cmd.MarkFlagRequired("macrostage")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func stageListCmd() *cobra.Command {
	var macrostage string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListStages(ctx, macrostage)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&macrostage, "macrostage", "", "owning macrostage id")
	_ = cmd.MarkFlagRequired("macrostage")
	return cmd
}

func stageUpdateCmd() *cobra.Command {
	var name, stageType, scope, tools, otherTools string
	cmd := &cobra.Command{
		Use:   "update <stage-id>",
		Short: "Update stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.StageUpdateOptions{ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("type") {
					opts.StageType = &stageType
				}
				if cmd.Flags().Changed("scope") {
					opts.Scope = &scope
				}
				if cmd.Flags().Changed("tools") {
					opts.Tools = &tools
				}
				if cmd.Flags().Changed("other-tools") {
					opts.OtherTools = &otherTools
				}
				s, err := e.UpdateStage(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "stage name")
	cmd.Flags().StringVar(&stageType, "type", "", "robot, system or not-applicable")
	cmd.Flags().StringVar(&scope, "scope", "", "stage scope")
	cmd.Flags().StringVar(&tools, "tools", "", "tool tag")
	cmd.Flags().StringVar(&otherTools, "other-tools", "", "free-form tools")
	return cmd
}

func stageStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <stage-id>",
		Short: "Show stage status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				status, err := e.StageStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"status": status})
			})
		},
	}
}

func stageReorderCmd() *cobra.Command {
	var macrostage string
	cmd := &cobra.Command{
		Use:   "reorder <stage-id>...",
		Short: "Reorder stages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ReorderStages(ctx, macrostage, args, viper.GetString("actor-id")); err != nil {
					return err
				}
				items, err := e.Repo.ListStages(ctx, macrostage)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&macrostage, "macrostage", "", "owning macrostage id")
	_ = cmd.MarkFlagRequired("macrostage")
	return cmd
}

func stageDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <stage-id>",
		Short: "Delete stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteStage(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage tasks"}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskShowCmd())
	t.AddCommand(taskUpdateCmd())
	t.AddCommand(taskReorderCmd())
	t.AddCommand(taskRecalcCmd())
	t.AddCommand(taskDeleteCmd())
	return t
}

func taskCreateCmd() *cobra.Command {
	var stage, macrostage, name, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					StageID:      stage,
					MacroStageID: macrostage,
					Name:         name,
					StartDate:    start,
					EndDate:      end,
					ActorID:      viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "owning stage id")
	cmd.Flags().StringVar(&macrostage, "macrostage", "", "owning macrostage id (direct task)")
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func taskListCmd() *cobra.Command {
	var stage, macrostage string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var items []domain.Task
				var err error
				switch {
				case stage != "":
					items, err = e.Repo.ListStageTasks(ctx, stage)
				case macrostage != "":
					items, err = e.Repo.ListMacroStageDirectTasks(ctx, macrostage)
				default:
					items, err = e.Repo.ListProjectTasks(ctx, e.Config.Project.ID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Start", "End", "Pos"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, deref(t.StartDate), deref(t.EndDate), t.Position})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "filter by stage id")
	cmd.Flags().StringVar(&macrostage, "macrostage", "", "filter by macrostage id (direct tasks)")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				t, err := r.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var name, start, end string
	var apply bool
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task",
		Long: `Update a task's name and dates. On a project with auto-shift enabled a
date move prints a shift plan; pass --apply-shift to execute it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.TaskUpdateOptions{ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("start") {
					opts.StartDate = &start
				}
				if cmd.Flags().Changed("end") {
					opts.EndDate = &end
				}
				res, err := e.UpdateTask(ctx, args[0], opts)
				if err != nil {
					return err
				}
				if res.Plan != nil && apply {
					shifted, err := e.ApplyShift(ctx, res.Plan.TaskID, res.Plan.DeltaDays, res.Plan.Reference, viper.GetString("actor-id"))
					if err != nil {
						return err
					}
					return printJSONOrTable(map[string]any{"task": res.Task, "shifted": shifted})
				}
				if res.Plan != nil {
					return printJSONOrTable(map[string]any{"task": res.Task, "shift_plan": res.Plan})
				}
				return printJSONOrTable(res.Task)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD, empty clears)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD, empty clears)")
	cmd.Flags().BoolVar(&apply, "apply-shift", false, "apply the cascading shift when proposed")
	return cmd
}

func taskReorderCmd() *cobra.Command {
	var stage, macrostage string
	cmd := &cobra.Command{
		Use:   "reorder <task-id>...",
		Short: "Reorder tasks within their owner",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				switch {
				case stage != "":
					if err := e.ReorderStageTasks(ctx, stage, args, actorID); err != nil {
						return err
					}
					items, err := e.Repo.ListStageTasks(ctx, stage)
					if err != nil {
						return err
					}
					return printJSONOrTable(items)
				case macrostage != "":
					if err := e.ReorderMacroStageTasks(ctx, macrostage, args, actorID); err != nil {
						return err
					}
					items, err := e.Repo.ListMacroStageDirectTasks(ctx, macrostage)
					if err != nil {
						return err
					}
					return printJSONOrTable(items)
				default:
					return errors.New("one of --stage or --macrostage is required")
				}
			})
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "owning stage id")
	cmd.Flags().StringVar(&macrostage, "macrostage", "", "owning macrostage id")
	return cmd
}

func taskRecalcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recalc <task-id>",
		Short: "Recalculate derived dates from task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RecalculateFromTask(ctx, args[0]); err != nil {
					return err
				}
				t, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func updateCmd() *cobra.Command {
	u := &cobra.Command{Use: "update", Short: "Manage weekly updates"}
	u.AddCommand(updateAddCmd())
	u.AddCommand(updateListCmd())
	u.AddCommand(updateEditCmd())
	u.AddCommand(updateDeleteCmd())
	return u
}

func updateAddCmd() *cobra.Command {
	var task, content, date string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record weekly update on a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.CreateWeeklyUpdate(ctx, engine.WeeklyUpdateOptions{
					TaskID:     task,
					Content:    content,
					UpdateDate: date,
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "task id")
	cmd.Flags().StringVar(&content, "content", "", "update text")
	cmd.Flags().StringVar(&date, "date", "", "update date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func updateListCmd() *cobra.Command {
	var task string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List weekly updates for a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListWeeklyUpdates(ctx, task)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "task id")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func updateEditCmd() *cobra.Command {
	var content, date string
	cmd := &cobra.Command{
		Use:   "edit <update-id>",
		Short: "Edit weekly update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var contentPtr, datePtr *string
				if cmd.Flags().Changed("content") {
					contentPtr = &content
				}
				if cmd.Flags().Changed("date") {
					datePtr = &date
				}
				w, err := e.EditWeeklyUpdate(ctx, args[0], contentPtr, datePtr, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "update text")
	cmd.Flags().StringVar(&date, "date", "", "update date (YYYY-MM-DD, empty clears)")
	return cmd
}

func updateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <update-id>",
		Short: "Delete weekly update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteWeeklyUpdate(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Project status and schedule overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tree, err := e.GetProjectTree(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tree)
				}
				fmt.Printf("%s  [%s]", tree.Project.Name, tree.Status.Display)
				if tree.Status.Progress != nil {
					fmt.Printf("  %d%%", *tree.Status.Progress)
				}
				fmt.Println()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Level", "Name", "Start", "End", "Status"})
				for _, mn := range tree.MacroStages {
					tw.AppendRow(table.Row{"macrostage", mn.MacroStage.Name,
						deref(mn.MacroStage.StartDate), deref(mn.MacroStage.EndDate), ""})
					for _, sn := range mn.Stages {
						tw.AppendRow(table.Row{"  stage", sn.Stage.Name,
							deref(sn.Stage.StartDate), deref(sn.Stage.EndDate), sn.Status})
						for _, t := range sn.Tasks {
							tw.AppendRow(table.Row{"    task", t.Name, deref(t.StartDate), deref(t.EndDate), ""})
						}
					}
					for _, t := range mn.Tasks {
						tw.AppendRow(table.Row{"  task", t.Name, deref(t.StartDate), deref(t.EndDate), ""})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
}

func shiftCmd() *cobra.Command {
	sh := &cobra.Command{Use: "shift", Short: "Cascading schedule shifts"}
	sh.AddCommand(shiftPlanCmd())
	sh.AddCommand(shiftApplyCmd())
	return sh
}

func shiftPlanCmd() *cobra.Command {
	var oldStart, oldEnd, newStart, newEnd string
	cmd := &cobra.Command{
		Use:   "plan <task-id>",
		Short: "Preview a cascading shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plan, err := e.PlanShift(ctx, args[0],
					optionalString(oldStart), optionalString(oldEnd),
					optionalString(newStart), optionalString(newEnd))
				if err != nil {
					return err
				}
				if plan == nil {
					fmt.Println("nothing to shift")
					return nil
				}
				return printJSONOrTable(plan)
			})
		},
	}
	cmd.Flags().StringVar(&oldStart, "old-start", "", "start date before the edit")
	cmd.Flags().StringVar(&oldEnd, "old-end", "", "end date before the edit")
	cmd.Flags().StringVar(&newStart, "new-start", "", "start date after the edit")
	cmd.Flags().StringVar(&newEnd, "new-end", "", "end date after the edit")
	return cmd
}

func shiftApplyCmd() *cobra.Command {
	var delta int
	var reference string
	cmd := &cobra.Command{
		Use:   "apply <task-id>",
		Short: "Apply a cascading shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				shifted, err := e.ApplyShift(ctx, args[0], delta, reference, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(shifted)
			})
		},
	}
	cmd.Flags().IntVar(&delta, "delta", 0, "days to move (negative pulls back)")
	cmd.Flags().StringVar(&reference, "reference", "", "tasks starting after this date move")
	_ = cmd.MarkFlagRequired("delta")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export schedule as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tree, err := e.GetProjectTree(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				w := os.Stdout
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return writeScheduleCSV(w, tree)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, e.Config.Project.ID, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveProjectAndConfig(cmd.Context(), workspace, viper.GetString("project"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("PLANLINE_JWT_SECRET")}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Planline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveProjectAndConfig(ctx, workspace, viper.GetString("project"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
