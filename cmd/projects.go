package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage the projects that group documents",
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		user, _ := cmd.Flags().GetString("user")
		name, _ := cmd.Flags().GetString("name")
		desc, _ := cmd.Flags().GetString("description")

		p, err := env.Service.CreateProject(ctx, user, name, desc)
		if err != nil {
			return eris.Wrap(err, "projects create")
		}
		fmt.Fprintf(os.Stdout, "Project %s created.\n", p.ID)
		return nil
	},
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's projects",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		user, _ := cmd.Flags().GetString("user")
		asJSON, _ := cmd.Flags().GetBool("json")

		projects, err := env.Service.ListProjects(ctx, user)
		if err != nil {
			return eris.Wrap(err, "projects list")
		}
		if asJSON {
			return writeJSON(os.Stdout, projects)
		}
		if len(projects) == 0 {
			fmt.Fprintln(os.Stderr, "No projects found.")
			return nil
		}
		formatProjectsList(os.Stdout, projects)
		return nil
	},
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project with its document and covenant counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Service.GetProject(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "projects show")
		}
		return writeJSON(os.Stdout, p)
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project with its documents, covenants and alerts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.DeleteProject(ctx, args[0]); err != nil {
			return eris.Wrap(err, "projects delete")
		}
		fmt.Fprintf(os.Stdout, "Project %s deleted.\n", args[0])
		return nil
	},
}

func init() {
	projectsCreateCmd.Flags().String("user", "", "owning user id")
	projectsCreateCmd.Flags().String("name", "", "project name")
	projectsCreateCmd.Flags().String("description", "", "project description")
	_ = projectsCreateCmd.MarkFlagRequired("user")
	_ = projectsCreateCmd.MarkFlagRequired("name")

	projectsListCmd.Flags().String("user", "", "user id")
	projectsListCmd.Flags().Bool("json", false, "print JSON")
	_ = projectsListCmd.MarkFlagRequired("user")

	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsShowCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
	rootCmd.AddCommand(projectsCmd)
}
