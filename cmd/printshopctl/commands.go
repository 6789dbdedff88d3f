package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"printshop/internal/app"
	"printshop/internal/auth"
	"printshop/internal/csvexport"
	"printshop/internal/idgen"
	"printshop/internal/report"
)

func newVerifyCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <certificate-id>",
		Short: "Look up a certificate and print the verification result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				res, err := a.Certificates.Verify(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			})
		},
	}
}

func newReportCmd(open opener) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "report <certificate-id>",
		Short: "Render the verification report PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				res, err := a.Certificates.Verify(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := a.Renderer.Render(res, time.Now().In(a.Config.Location()))
				if err != nil {
					return err
				}
				path := output
				if path == "" {
					path = report.Filename(res.ID)
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(data))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default Certificate_Verification_<id>.pdf)")
	return cmd
}

func newArchiveCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <certificate-id>",
		Short: "Render the report and store it in the report bucket now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				archivist, err := a.Archivist(cmd.Context())
				if err != nil {
					return err
				}
				out, err := archivist.Archive(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out.Key)
				if out.URL != "" {
					fmt.Fprintln(cmd.OutOrStdout(), out.URL)
				}
				return nil
			})
		},
	}
}

var exportable = []string{"certificates", "jobs", "internships", "applications", "subscribers", "products", "orders"}

func newExportCmd(open opener) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:       "export <" + strings.Join(exportable, "|") + ">",
		Short:     "Write a collection as CSV",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: exportable,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				records, err := exportRecords(cmd, a, args[0])
				if err != nil {
					return err
				}
				var w io.Writer = cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return csvexport.Write(w, records)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func exportRecords(cmd *cobra.Command, a *app.App, collection string) ([]csvexport.Record, error) {
	ctx := cmd.Context()
	switch collection {
	case "certificates":
		v, err := a.Certificates.List(ctx)
		return csvexport.Rows(v), err
	case "jobs", "internships":
		kind := idgen.Job
		if collection == "internships" {
			kind = idgen.Internship
		}
		v, err := a.Careers.ListPostings(ctx, kind, false)
		return csvexport.Rows(v), err
	case "applications":
		v, err := a.Careers.ListApplications(ctx)
		return csvexport.Rows(v), err
	case "subscribers":
		v, err := a.Careers.ListSubscribers(ctx)
		return csvexport.Rows(v), err
	case "products":
		v, err := a.Shop.ListProducts(ctx, false)
		return csvexport.Rows(v), err
	case "orders":
		v, err := a.Shop.ListOrders(ctx)
		return csvexport.Rows(v), err
	}
	return nil, fmt.Errorf("unknown collection %q", collection)
}

func newAdminCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(newAdminAddCmd(open), newAdminListCmd(open), newAdminSetActiveCmd(open, false), newAdminSetActiveCmd(open, true))
	return cmd
}

func newAdminAddCmd(open opener) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Create an admin account (password from PRINTSHOP_ADMIN_PASSWORD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("PRINTSHOP_ADMIN_PASSWORD")
			if password == "" {
				return fmt.Errorf("PRINTSHOP_ADMIN_PASSWORD is not set")
			}
			return withApp(cmd, open, func(a *app.App) error {
				u, err := a.Auth.AddAdmin(cmd.Context(), args[0], password, role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", u.Email, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "admin", "Role: admin or editor")
	return cmd
}

func newAdminListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List admin accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				users, err := a.Auth.ListAdmins(cmd.Context())
				if err != nil {
					return err
				}
				slices.SortFunc(users, func(x, y auth.AdminUser) int { return strings.Compare(x.Email, y.Email) })
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "EMAIL\tROLE\tACTIVE\tCREATED")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", u.Email, u.Role, u.Active, u.CreatedAt.Format(time.DateOnly))
				}
				return tw.Flush()
			})
		},
	}
}

func newAdminSetActiveCmd(open opener, active bool) *cobra.Command {
	use, short := "disable <email>", "Disable an admin account and reject its issued tokens"
	if active {
		use, short = "enable <email>", "Re-enable an admin account"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.App) error {
				return a.Auth.SetActive(cmd.Context(), args[0], active)
			})
		},
	}
}
