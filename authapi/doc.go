// Package authapi implements login, profile and logout calls on top of an
// httpclient.Client.
//
//	client, _ := httpclient.New("https://api.example.com", credential.NewMemoryStore())
//	auth := authapi.New(client)
//
//	if _, err := auth.Login(ctx, authapi.LoginRequest{Email: email, Password: password}); err != nil {
//		return err
//	}
//	user, err := auth.Profile(ctx)
package authapi
