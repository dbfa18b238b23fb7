package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vaultScope/internal/ops"
)

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy [constructor args...]",
		Short: "Deploy a contract from creation bytecode",
		RunE:  withApp(true, runDeploy),
	}
	f := cmd.Flags()
	f.String("bytecode-file", "", "file holding hex creation bytecode")
	f.String("abi-file", "", "contract ABI JSON, required when the constructor takes arguments")
	f.String("label", "deploy", "label recorded with the outcome")
	addTxFlags(f)
	return cmd
}

func runDeploy(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	f := cmd.Flags()
	codePath, _ := f.GetString("bytecode-file")
	if codePath == "" {
		return fmt.Errorf("--bytecode-file is required")
	}
	rawCode, err := os.ReadFile(codePath)
	if err != nil {
		return fmt.Errorf("read bytecode: %w", err)
	}
	code, err := ops.DecodeBytecode(string(rawCode))
	if err != nil {
		return err
	}

	var abiJSON string
	var ctorArgs []interface{}
	if abiPath, _ := f.GetString("abi-file"); abiPath != "" {
		raw, err := os.ReadFile(abiPath)
		if err != nil {
			return fmt.Errorf("read abi: %w", err)
		}
		abiJSON = string(raw)
		if ctorArgs, err = ops.ParseConstructorArgs(abiJSON, args); err != nil {
			return err
		}
	} else if len(args) > 0 {
		return fmt.Errorf("constructor args need --abi-file")
	}

	label, _ := f.GetString("label")
	req, err := ops.Deploy(label, code, abiJSON, ctorArgs...)
	if err != nil {
		return err
	}
	return a.submit(ctx, cmd.OutOrStdout(), req)
}
