package config

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

const userDataTimeout = 2 * time.Second

// userData fetches the EC2 instance user-data document.
var userData = func(ctx context.Context) ([]byte, error) {
	out, err := imds.New(imds.Options{}).GetUserData(ctx, &imds.GetUserDataInput{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Content.Close() }()
	return io.ReadAll(out.Content)
}

// instanceData is the subset of user-data that overrides file values.
type instanceData struct {
	Identity   string `json:"identity"`
	Repository string `json:"repository"`
}

// applyInstanceData lets a JSON user-data document override identity and
// repository when ec2_user_data is enabled. Off EC2 the lookup fails and the
// file values stand.
func applyInstanceData(raw map[string]string) error {
	v := raw["ec2_user_data"]
	if v == "" {
		return nil
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return invalidValue("ec2_user_data", v, err)
	}
	if !enabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), userDataTimeout)
	defer cancel()
	body, err := userData(ctx)
	if err != nil {
		slog.Debug("No instance user-data available", slog.String("error", err.Error()))
		return nil
	}
	var data instanceData
	if err := json.Unmarshal(body, &data); err != nil {
		slog.Error("Could not parse instance user-data", slog.String("error", err.Error()))
		return nil
	}
	if data.Identity != "" {
		raw["identity"] = data.Identity
	}
	if data.Repository != "" {
		raw["repository"] = data.Repository
	}
	return nil
}
