package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir [DIRECTORY]",
		Short: "Create or prepare a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.dirArg(args)
			if err := a.stack.Store.CreateDirectory(cmd.Context(), dir); err != nil {
				return err
			}
			a.rememberDirectory(dir)
			fmt.Fprintf(cmd.OutOrStdout(), "Directory %s is ready for use\n", dir)
			return nil
		},
	}
}

func (a *app) rmdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir [DIRECTORY]",
		Short: "Delete a directory and everything below it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.dirArg(args)
			if err := a.stack.Store.DeleteDirectoryRecursive(cmd.Context(), dir); err != nil {
				return err
			}
			a.rememberDirectory(dir)
			fmt.Fprintf(cmd.OutOrStdout(), "Directory %s has been deleted\n", dir)
			return nil
		},
	}
}

func (a *app) dirExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir-exists [DIRECTORY]",
		Short: "Report whether a directory exists",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.dirArg(args)
			if a.stack.Store.DirectoryExists(cmd.Context(), dir) {
				fmt.Fprintf(cmd.OutOrStdout(), "Directory %s exists\n", dir)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Directory %s does not exist\n", dir)
			}
			return nil
		},
	}
}
