package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect and switch policy profiles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every profile (default and custom)",
			RunE: func(cmd *cobra.Command, args []string) error {
				var raw json.RawMessage
				if err := api.get("/tccd/v1/profiles", &raw); err != nil {
					return err
				}
				return printIndented(raw)
			},
		},
		&cobra.Command{
			Use:   "active",
			Short: "Show the currently active profile",
			RunE: func(cmd *cobra.Command, args []string) error {
				var raw json.RawMessage
				if err := api.get("/tccd/v1/profiles/active", &raw); err != nil {
					return err
				}
				return printIndented(raw)
			},
		},
		&cobra.Command{
			Use:   "set-active <id>",
			Short: "Apply a profile by id now, without changing the state map",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var ok bool
				if err := api.post("/tccd/v1/profiles/active/"+args[0], nil, &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
		&cobra.Command{
			Use:   "set-temp <name>",
			Short: "Switch profile for this session only, by name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var ok bool
				if err := api.post("/tccd/v1/profiles/temp/"+args[0], nil, &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
		&cobra.Command{
			Use:   "save <profile.json>",
			Short: "Save a new custom profile from a JSON file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read %s: %w", args[0], err)
				}
				var ok bool
				if err := api.postRaw("/tccd/v1/profiles/custom", data, &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a custom profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var ok bool
				if err := api.delete("/tccd/v1/profiles/custom/"+args[0], &ok); err != nil {
					return err
				}
				return printResult(ok)
			},
		},
	)
	return cmd
}

func printIndented(raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printResult(ok bool) error {
	if !ok {
		fmt.Println("not ok")
		os.Exit(1)
	}
	fmt.Println("ok")
	return nil
}
