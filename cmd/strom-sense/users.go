// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"net/mail"

	"github.com/spf13/cobra"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/model"
	"github.com/Amenkhnisi/strom-sense/internal/store"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage household profiles",
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a household",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		u := &model.UserProfile{}
		u.Email, _ = f.GetString("email")
		u.Username, _ = f.GetString("username")
		u.PostalCode, _ = f.GetString("postal-code")
		if f.Changed("household-size") {
			size, _ := f.GetInt("household-size")
			u.HouseholdSize = model.Int(size)
		}
		if f.Changed("property-type") {
			pt, _ := f.GetString("property-type")
			u.PropertyType = model.String(pt)
		}
		if f.Changed("size-sqm") {
			sqm, _ := f.GetFloat64("size-sqm")
			u.PropertySizeSqm = model.Float(sqm)
		}
		if err := validateUser(u); err != nil {
			return err
		}

		return withStore(cmd.Context(), func(st store.Store) error {
			if err := st.CreateUser(cmd.Context(), u); err != nil {
				return err
			}
			appLogger.WithUserID(u.UserID, u.Email).Info("User created")
			return render(u, func(w io.Writer) { formatUsers(w, []model.UserProfile{*u}) })
		})
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List households",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			users, err := st.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return render(users, func(w io.Writer) { formatUsers(w, users) })
		})
	},
}

func validateUser(u *model.UserProfile) error {
	var problems apperr.ValidationErrors
	if _, err := mail.ParseAddress(u.Email); err != nil {
		problems = append(problems, &apperr.ValidationError{Field: "email", Value: u.Email, Message: "must be an e-mail address"})
	}
	if u.Username == "" {
		problems = append(problems, &apperr.ValidationError{Field: "username", Message: "is required"})
	}
	if len(u.PostalCode) != 5 {
		problems = append(problems, &apperr.ValidationError{Field: "postal-code", Value: u.PostalCode, Message: "must have five digits"})
	}
	if u.HouseholdSize != nil && (*u.HouseholdSize < 1 || *u.HouseholdSize > 10) {
		problems = append(problems, &apperr.ValidationError{Field: "household-size", Message: "must be between 1 and 10"})
	}
	if u.PropertyType != nil && *u.PropertyType != model.PropertyApartment && *u.PropertyType != model.PropertyHouse {
		problems = append(problems, &apperr.ValidationError{Field: "property-type", Value: *u.PropertyType, Message: "must be apartment or house"})
	}
	if u.PropertySizeSqm != nil && *u.PropertySizeSqm <= 0 {
		problems = append(problems, &apperr.ValidationError{Field: "size-sqm", Message: "must be positive"})
	}
	return problems.OrNil()
}

func formatUsers(w io.Writer, users []model.UserProfile) {
	fmt.Fprintln(w, "ID\tUSERNAME\tPOSTAL CODE\tHOUSEHOLD\tPROPERTY\tSIZE")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			u.UserID, u.Username, u.PostalCode,
			optInt(u.HouseholdSize), optString(u.PropertyType), optFloat(u.PropertySizeSqm, "%.0f m²"))
	}
}

func init() {
	f := usersAddCmd.Flags()
	f.String("email", "", "contact e-mail address")
	f.String("username", "", "unique user name")
	f.String("postal-code", "", "five digit German postal code")
	f.Int("household-size", 0, "number of people in the household")
	f.String("property-type", "", "apartment or house")
	f.Float64("size-sqm", 0, "living space in square metres")
	_ = usersAddCmd.MarkFlagRequired("email")
	_ = usersAddCmd.MarkFlagRequired("username")
	_ = usersAddCmd.MarkFlagRequired("postal-code")

	usersCmd.AddCommand(usersAddCmd, usersListCmd)
	rootCmd.AddCommand(usersCmd)
}
