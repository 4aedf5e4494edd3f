package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write runtime settings",
	}

	settingsCmd.AddCommand(newSettingsListCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))

	return settingsCmd
}

func newSettingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List public settings grouped by namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				grouped, err := client.Settings()
				if err != nil {
					return err
				}

				namespaces := make([]string, 0, len(grouped))
				for namespace := range grouped {
					namespaces = append(namespaces, namespace)
				}
				sort.Strings(namespaces)

				var rows [][]string
				for _, namespace := range namespaces {
					keys := make([]string, 0, len(grouped[namespace]))
					for key := range grouped[namespace] {
						keys = append(keys, key)
					}
					sort.Strings(keys)
					for _, key := range keys {
						rows = append(rows, []string{namespace, key, formatSettingValue(grouped[namespace][key])})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No public settings")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Namespace", "Key", "Value"}, rows))
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <namespace> <key> <value>",
		Short: "Update one setting (requires the API token for protected keys)",
		Long:  "The value is parsed as JSON when possible, so numbers, booleans, and objects round-trip; anything else is stored as a string.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, key, raw := args[0], args[1], args[2]

			var value any = raw
			var parsed any
			if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
				value = parsed
			}

			return ctx.withClient(func(client *apiClient) error {
				if err := client.SetSetting(namespace, key, value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s/%s\n", namespace, key)
				return nil
			})
		},
	}
}

func formatSettingValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case nil:
		return ""
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}
		return string(data)
	}
}
