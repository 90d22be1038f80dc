package cmd

import (
	"context"
	"fmt"

	"github.com/sparklab/sparklab-api/pkg/services"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print a token",
	Long: `Exchange an email and password for a bearer token. Export it as
SPARKCTL_TOKEN or put it in the config file to use the other commands.

Pass --register to create the account first.`,
	RunE: runLogin,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show plan and usage",
	RunE:  runProfile,
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade to the paid plan",
	RunE:  runUpgrade,
}

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List available engines",
	RunE:  runEngines,
}

func init() {
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password")
	loginCmd.Flags().Bool("register", false, "create the account before logging in")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(loginCmd, profileCmd, upgradeCmd, enginesCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	register, _ := cmd.Flags().GetBool("register")

	ctx := context.Background()
	if register {
		if _, err := c.Register(ctx, email, password); err != nil {
			printError(err)
			return err
		}
	}
	auth, err := c.Login(ctx, email, password)
	if err != nil {
		printError(err)
		return err
	}
	if jsonOut {
		return printJSON(auth)
	}
	fmt.Println(auth.Token)
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}
	p, err := c.Profile(context.Background())
	if err != nil {
		printError(err)
		return err
	}
	return printProfile(p)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}
	p, err := c.Upgrade(context.Background())
	if err != nil {
		printError(err)
		return err
	}
	return printProfile(p)
}

func printProfile(p *services.ProfileView) error {
	if jsonOut {
		return printJSON(p)
	}
	fmt.Printf("Email:      %s\n", p.Email)
	fmt.Printf("Plan:       %s\n", p.Plan)
	fmt.Printf("Used:       %d\n", p.UsedGenerations)
	fmt.Printf("Remaining:  %v\n", p.RemainingGenerations)
	return nil
}

func runEngines(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}
	views, err := c.Engines(context.Background())
	if err != nil {
		printError(err)
		return err
	}
	if jsonOut {
		return printJSON(views)
	}

	w := newTable()
	fmt.Fprintln(w, "KEY\tLABEL\tTYPE\tMAX OUTPUTS\tREFERENCE IMAGE\tCONNECTION")
	for _, v := range views {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n",
			v.Key, v.Label, v.Type, v.MaxOutputs, v.SupportsReferenceImage, v.Connection)
	}
	return w.Flush()
}
