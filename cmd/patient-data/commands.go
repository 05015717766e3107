package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehr/patientdata/internal/domain/patient"
)

var sections = []string{"all", "basic", "addresses", "insurance", "diseases"}

func getCmd(a *app) *cobra.Command {
	var section, out string
	cmd := &cobra.Command{
		Use:   "get <patient-id>",
		Short: "Print one patient's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validSection(section) {
				return fmt.Errorf("unknown section %q, expected one of %v", section, sections)
			}
			var result any
			err := a.withFetcher(cmd.Context(), func(f *patient.Fetcher) error {
				var err error
				result, err = fetchSection(cmd, f, section, args[0])
				return err
			})
			if err != nil {
				return err
			}
			return a.emit(cmd, result, out)
		},
	}
	cmd.Flags().StringVar(&section, "section", "all", "all, basic, addresses, insurance or diseases")
	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	return cmd
}

func validSection(s string) bool {
	for _, v := range sections {
		if v == s {
			return true
		}
	}
	return false
}

func fetchSection(cmd *cobra.Command, f *patient.Fetcher, section, id string) (any, error) {
	ctx := cmd.Context()
	switch section {
	case "basic":
		return f.GetBasicInfo(ctx, id)
	case "addresses":
		return f.GetAddresses(ctx, id)
	case "insurance":
		return f.GetInsurance(ctx, id)
	case "diseases":
		return f.GetDiseases(ctx, id)
	default:
		return f.GetAllData(ctx, id)
	}
}

func searchCmd(a *app) *cobra.Command {
	var limit int
	var out string
	cmd := &cobra.Command{
		Use:   "search <kana-name>",
		Short: "Find patients whose kana name contains the pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []*patient.BasicInfo
			err := a.withFetcher(cmd.Context(), func(f *patient.Fetcher) error {
				var err error
				result, err = f.SearchByName(cmd.Context(), args[0], limit)
				return err
			})
			if err != nil {
				return err
			}
			return a.emit(cmd, result, out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", patient.DefaultSearchLimit, "maximum number of patients")
	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	return cmd
}

func rangeCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "range <start YYYY-MM-DD> <end YYYY-MM-DD>",
		Short: "List patients registered between two dates, inclusive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []*patient.BasicInfo
			err := a.withFetcher(cmd.Context(), func(f *patient.Fetcher) error {
				var err error
				result, err = f.GetByDateRange(cmd.Context(), args[0], args[1])
				return err
			})
			if err != nil {
				return err
			}
			return a.emit(cmd, result, out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <patient-id>...",
		Short: "Write full patient records to a JSON or YAML file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := out
			if path == "" {
				path = defaultExportPath(args)
			}

			var result any
			err := a.withFetcher(cmd.Context(), func(f *patient.Fetcher) error {
				var err error
				if len(args) == 1 {
					result, err = f.GetAllData(cmd.Context(), args[0])
				} else {
					result, err = f.GetBatch(cmd.Context(), args)
				}
				return err
			})
			if err != nil {
				return err
			}
			if err := a.emit(cmd, result, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "destination file; .yaml or .yml selects YAML")
	return cmd
}

func defaultExportPath(ids []string) string {
	if len(ids) == 1 {
		return "patient_" + ids[0] + ".json"
	}
	return "all_patients.json"
}
