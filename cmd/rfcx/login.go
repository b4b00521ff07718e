package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and store credentials for later runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		cred := client.Credentials()
		fmt.Printf("Authenticated. Token valid until %s\n", cred.Expiry.Format("2006-01-02 15:04 MST"))

		claims, err := cred.Claims()
		if err != nil {
			log.Debug().Err(err).Msg("Could not decode id token claims")
			return nil
		}
		if claims != nil && claims.DefaultSite != "" {
			fmt.Printf("Default site: %s\n", claims.DefaultSite)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
