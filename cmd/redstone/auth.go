// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"

	"github.com/hammsvietro/redstone/rsconfig"
	"github.com/hammsvietro/redstone/rstransfer"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the configured server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverCfg, err := rsconfig.LoadServerConfig()
			if err != nil {
				return err
			}

			email, password, err := promptCredentials()
			if err != nil {
				return err
			}

			jar, err := cookiejar.New(nil)
			if err != nil {
				return err
			}
			httpClient := &http.Client{Jar: jar}
			client := rstransfer.NewClient(serverCfg.BaseURL(), httpClient)

			if err := client.Login(cmd.Context(), email, password); err != nil {
				return err
			}

			base, err := url.Parse(serverCfg.BaseURL())
			if err != nil {
				return err
			}
			cookie := renderCookies(jar.Cookies(base))
			if err := rsconfig.SaveAuth(rsconfig.AuthState{SessionToken: cookie}); err != nil {
				return err
			}
			fmt.Println("successfully authenticated!")
			return nil
		},
	}
}

// renderCookies joins a cookie jar's entries for one origin into the
// single "name=value; name2=value2" string AuthState persists, mirroring
// the reference implementation's own cookie-jar-to-string serialisation
// at login time (see original_source's jar.rs).
func renderCookies(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

func promptCredentials() (email, password string, err error) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("E-mail: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", "", err
	}
	email = strings.TrimSpace(line)

	fmt.Print("Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", "", err
	}
	return email, string(pwBytes), nil
}
