// Package stationclient talks to a WeatherBird station's configuration web
// surface from another machine.
//
// It is the programmatic side of the pages a phone would normally use: read
// the status document, submit network credentials, leave configuration
// mode, claim or cancel the cloud identity, and request reconfiguration.
// Watch streams state transitions from the station's /events websocket.
//
// # Usage Example
//
//	client := stationclient.New("http://192.168.1.50")
//
//	status, err := client.Status(ctx)
//	if err != nil {
//	    fmt.Println(stationclient.GetTroubleshootingHint(err))
//	    return err
//	}
//	fmt.Println(stationclient.FormatStatus(status))
//
//	slot := 0
//	result, err := client.SubmitNetwork(ctx, stationclient.NetworkUpdate{
//	    Slot:     &slot,
//	    SSID:     stationclient.String("HomeNet"),
//	    Password: stationclient.String("secret"),
//	})
//
// # Retries
//
// Reads are retried with exponential backoff on network errors and 5xx
// responses. Requests that change the station's state are sent once; the
// station may already have acted on a request whose response was lost.
//
// # Validation and Verification
//
// ValidateNetworkUpdate checks field sizes against the station's record
// layout before anything is sent; short WPA passwords are warnings.
// VerifyNetwork reads the status document back until the slot matches.
//
// # Error Handling
//
// Every failure is a *StationError. The HTTP status codes of the station
// map to distinct error types: 409 means the request is not valid in the
// station's current state, 422 means the input was rejected, and 502 means
// the cloud claim failed.
package stationclient
