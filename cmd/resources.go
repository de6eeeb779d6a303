package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mc-resource-manager/logger"
	"mc-resource-manager/modrinth"
	"mc-resource-manager/resource"
	"mc-resource-manager/store"
	"mc-resource-manager/ui"
)

var listCmd = &cobra.Command{
	Use:   "list [domain]",
	Short: "Lists cataloged resources",
	Long: fmt.Sprintf(`Lists the cataloged resources, optionally only those of one domain.
--uri lists the resources carrying a uri that starts with the given prefix,
e.g. "modrinth:AANobbMI" for every version of a Modrinth project.
--search lists the resources whose name contains the given keyword.
Domains: %s`, joinDomains()),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var domain resource.Domain
		if len(args) == 1 {
			domain = resource.Domain(args[0])
			if !domain.Valid() {
				return fmt.Errorf("unknown domain %q, expected one of %s", args[0], joinDomains())
			}
		}
		q := listQuery{Domain: domain}
		q.URI, _ = cmd.Flags().GetString("uri")
		q.Search, _ = cmd.Flags().GetString("search")
		asJSON, _ := cmd.Flags().GetBool("json")
		return withApp(cmd, func(a *app) error {
			return listResources(cmd.Context(), a, cmd.OutOrStdout(), q, asJSON)
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <hash|path>",
	Short: "Shows the details of one resource",
	Long: `Shows the details of the resource with the given content hash, or of
the resources last seen at the given file path.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			return showResource(cmd.Context(), a, cmd.OutOrStdout(), args[0])
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <hash>...",
	Short: "Removes resources from the catalog",
	Long: `Removes resources from the catalog, by content hash or with --path by file path.
The files themselves are left untouched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		byPath, _ := cmd.Flags().GetBool("path")
		return withApp(cmd, func(a *app) error {
			for _, arg := range args {
				var err error
				if byPath {
					err = a.importer.RemovePath(cmd.Context(), arg)
				} else {
					err = a.importer.RemoveResource(cmd.Context(), arg)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", arg)
			}
			return nil
		})
	},
}

var enableCmd = &cobra.Command{
	Use:   "enable <hash>...",
	Short: "Marks resources as enabled",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args, true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <hash>...",
	Short: "Marks resources as disabled",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args, false)
	},
}

var sourceCmd = &cobra.Command{
	Use:   "source <hash>",
	Short: "Records where a resource was downloaded from",
	Long: `Adds provenance to a resource. Known origins are never replaced.
Example: mc-resource-manager source <hash> --modrinth AANobbMI:mc1.20.1-0.5.3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := sourceFromFlags(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, func(a *app) error {
			if err := a.importer.AddSource(cmd.Context(), args[0], src); err != nil {
				return err
			}
			return showResource(cmd.Context(), a, cmd.OutOrStdout(), args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, removeCmd, enableCmd, disableCmd, sourceCmd)

	listCmd.Flags().Bool("json", false, "Print resources as JSON")
	listCmd.Flags().String("uri", "", "Only resources with a uri starting with this prefix")
	listCmd.Flags().String("search", "", "Only resources whose name contains this keyword")
	listCmd.MarkFlagsMutuallyExclusive("uri", "search")
	removeCmd.Flags().Bool("path", false, "Treat arguments as file paths instead of hashes")
	sourceCmd.Flags().String("modrinth", "", "Modrinth origin as <project>:<version>")
	sourceCmd.Flags().String("curseforge", "", "CurseForge origin as <projectID>:<fileID>")
	sourceCmd.Flags().String("github", "", "GitHub origin as <owner>/<repo>[:<artifact>]")
}

// withApp bootstraps the application around fn without progress reporting.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := bootstrap(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func joinDomains() string {
	names := make([]string, len(resource.Domains))
	for i, d := range resource.Domains {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}

// listQuery selects what list prints; URI and Search are exclusive.
type listQuery struct {
	Domain resource.Domain
	URI    string
	Search string
}

func queryResources(ctx context.Context, a *app, q listQuery) ([]resource.Resource, error) {
	switch {
	case q.URI != "":
		rs, err := a.importer.FindByURI(ctx, q.URI)
		if err != nil || q.Domain == "" {
			return rs, err
		}
		return slices.DeleteFunc(rs, func(r resource.Resource) bool { return r.Domain != q.Domain }), nil
	case q.Search != "":
		return a.importer.SearchResources(ctx, q.Domain, q.Search)
	default:
		return a.importer.ListResources(ctx, q.Domain)
	}
}

func listResources(ctx context.Context, a *app, w io.Writer, q listQuery, asJSON bool) error {
	rs, err := queryResources(ctx, a, q)
	if err != nil {
		return err
	}
	if asJSON {
		for i := range rs {
			rs[i].Icons = nil
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rs)
	}
	if len(rs) == 0 {
		fmt.Fprintln(w, "No resources cataloged.")
		return nil
	}
	fmt.Fprintln(w, resourceTable(rs))
	return nil
}

// showResource describes the resource with hash, or when arg names an
// existing file or folder, the resources last seen there.
func showResource(ctx context.Context, a *app, w io.Writer, arg string) error {
	if _, err := os.Stat(arg); err == nil {
		rs, err := a.importer.FindByPath(ctx, arg)
		if err != nil {
			return err
		}
		if len(rs) == 0 {
			return fmt.Errorf("no resource cataloged at %s", arg)
		}
		for i, r := range rs {
			if i > 0 {
				fmt.Fprintln(w)
			}
			describeWithProject(ctx, a, w, r)
		}
		return nil
	}

	r, err := a.importer.GetResource(ctx, arg)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no resource with hash %s", arg)
	}
	if err != nil {
		return err
	}
	describeWithProject(ctx, a, w, r)
	return nil
}

func describeWithProject(ctx context.Context, a *app, w io.Writer, r resource.Resource) {
	if a.modrinth != nil && r.Source.Modrinth != nil {
		project, err := a.modrinth.GetProject(ctx, r.Source.Modrinth.ProjectID)
		switch {
		case err == nil:
			fmt.Fprintln(w, ui.Bold.Render(ui.Colorize(project.Title, project.Color)))
			if project.Description != "" {
				fmt.Fprintln(w, project.Description)
			}
			fmt.Fprintln(w)
		case !errors.Is(err, modrinth.ErrNotFound):
			logger.Log.Warnw("Failed to fetch Modrinth project", zap.String("project", r.Source.Modrinth.ProjectID), zap.Error(err))
		}
	}
	describe(w, r)
}

func setEnabled(cmd *cobra.Command, hashes []string, enabled bool) error {
	return withApp(cmd, func(a *app) error {
		for _, hash := range hashes {
			err := a.importer.SetEnabled(cmd.Context(), hash, enabled)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no resource with hash %s", hash)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func sourceFromFlags(cmd *cobra.Command) (resource.Source, error) {
	mr, _ := cmd.Flags().GetString("modrinth")
	cf, _ := cmd.Flags().GetString("curseforge")
	gh, _ := cmd.Flags().GetString("github")
	return parseSource(mr, cf, gh)
}

// parseSource builds a Source from the textual forms accepted by the source command.
func parseSource(mr, cf, gh string) (resource.Source, error) {
	var src resource.Source
	if mr != "" {
		project, version, ok := strings.Cut(mr, ":")
		if !ok || project == "" || version == "" {
			return src, fmt.Errorf("invalid Modrinth origin %q, expected <project>:<version>", mr)
		}
		src.Modrinth = &resource.ModrinthSource{ProjectID: project, VersionID: version}
	}
	if cf != "" {
		project, file, ok := strings.Cut(cf, ":")
		projectID, perr := strconv.Atoi(project)
		fileID, ferr := strconv.Atoi(file)
		if !ok || perr != nil || ferr != nil {
			return src, fmt.Errorf("invalid CurseForge origin %q, expected <projectID>:<fileID>", cf)
		}
		src.Curseforge = &resource.CurseforgeSource{ProjectID: projectID, FileID: fileID}
	}
	if gh != "" {
		repo, artifact, _ := strings.Cut(gh, ":")
		owner, name, ok := strings.Cut(repo, "/")
		if !ok || owner == "" || name == "" {
			return src, fmt.Errorf("invalid GitHub origin %q, expected <owner>/<repo>[:<artifact>]", gh)
		}
		src.Github = &resource.GitSource{Owner: owner, Repo: name, Artifact: artifact}
	}
	if src.Modrinth == nil && src.Curseforge == nil && src.Github == nil {
		return src, errors.New("no origin given, use --modrinth, --curseforge or --github")
	}
	return src, nil
}
