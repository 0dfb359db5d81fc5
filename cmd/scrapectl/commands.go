package main

import (
	"github.com/spf13/cobra"

	"github.com/tanner-pham/Baller-sub000/internal/fingerprint"
	"github.com/tanner-pham/Baller-sub000/internal/models"
)

type listingOutput struct {
	ListingID string                   `json:"listingId"`
	URL       string                   `json:"url"`
	Strategy  string                   `json:"strategy"`
	Listing   models.NormalizedListing `json:"listing"`
	Raw       map[string]any           `json:"raw,omitempty"`
}

func newListingCmd(a *app) *cobra.Command {
	var withRaw bool

	cmd := &cobra.Command{
		Use:   "listing <listing-url>",
		Short: "Scrape one listing page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.executor.ScrapeListing(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := listingOutput{
				ListingID: res.ListingID,
				URL:       res.URL,
				Strategy:  res.Strategy,
				Listing:   res.Listing,
			}
			if withRaw {
				out.Raw = res.Raw
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&withRaw, "raw", false, "include the raw extracted node")
	return cmd
}

type fingerprintOutput struct {
	ListingID  string                    `json:"listingId"`
	Query      models.SimilarSearchQuery `json:"query"`
	SearchLink fingerprint.SearchLink    `json:"searchLink"`
}

func newFingerprintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <listing-url>",
		Short: "Scrape a listing and print its similar-listings query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.executor.ScrapeListing(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), fingerprintOutput{
				ListingID:  res.ListingID,
				Query:      fingerprint.Build(res.Listing),
				SearchLink: fingerprint.ListingSearchLink(a.cfg.MarketplaceBaseURL, res.Listing),
			})
		},
	}
}

type similarOutput struct {
	ListingID string                        `json:"listingId"`
	Query     models.SimilarSearchQuery     `json:"query"`
	Listings  []models.NormalizedComparable `json:"listings"`
}

func newSimilarCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "similar <listing-url>",
		Short: "Scrape a listing, then search and rank similar listings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.executor.ScrapeListing(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			query := fingerprint.Build(res.Listing)
			listings, err := a.executor.ScrapeSimilar(cmd.Context(), query)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), similarOutput{
				ListingID: res.ListingID,
				Query:     query,
				Listings:  listings,
			})
		},
	}
}
