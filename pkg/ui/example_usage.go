// Package ui provides terminal UI components for the collection harvester
// This file demonstrates example usage of the UI components
package ui

/*
Example usage of the UI components:

// Terminal colors and output
ui.PrintInfo("Collection", "brady-handy")        // Cyan label with value
ui.PrintSuccess("Harvest completed!")            // Green success message
ui.PrintError("Failed to fetch page", err)       // Red error message
ui.PrintWarning("Rate limit approaching")        // Yellow warning message
ui.PrintHighlight("[RESUMING]")                  // Magenta highlight message

// Run progress
display := ui.NewRunDisplay("brady-handy", false)
display.ScanningPage(1)                          // Announce a listing page
display.StartRecord("portrait-of-lincoln")       // Announce a record
display.CompleteRecord(2, 0, 0, 81920)           // Fold results into totals
display.Complete(3)                              // Print end-of-run summary

// Notifications (cross-platform)
notifier := ui.NewNotifier()
notifier.SendNotification("Harvest Complete", "All records synced")
notifier.SendError("Error", "Listing page kept failing")
notifier.SendSuccess("Success", "Collection mirrored successfully")

// Direct color usage
fmt.Printf("%s: %s\n", ui.Cyan("Collection"), ui.Yellow("brady-handy"))
fmt.Println(ui.Green("✓ Success"))
fmt.Println(ui.Red("✗ Failed"))
*/
