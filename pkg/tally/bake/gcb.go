/*
Copyright 2025 The Tally Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	cstorage "cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"google.golang.org/api/cloudbuild/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/chronotools/tally/pkg/tally/constants"
	"github.com/chronotools/tally/pkg/tally/docker"
	tallyerrors "github.com/chronotools/tally/pkg/tally/errors"
	"github.com/chronotools/tally/pkg/tally/gcp"
	"github.com/chronotools/tally/pkg/tally/output"
	"github.com/chronotools/tally/pkg/tally/output/log"
	"github.com/chronotools/tally/pkg/tally/recipe"
)

const (
	// StatusUnknown "STATUS_UNKNOWN" - Status of the build is unknown.
	StatusUnknown = "STATUS_UNKNOWN"

	// StatusQueued "QUEUED" - Build is queued; work has not yet begun.
	StatusQueued = "QUEUED"

	// StatusWorking "WORKING" - Build is being executed.
	StatusWorking = "WORKING"

	// StatusSuccess "SUCCESS" - Build finished successfully.
	StatusSuccess = "SUCCESS"

	// StatusFailure "FAILURE" - Build failed to complete successfully.
	StatusFailure = "FAILURE"

	// StatusInternalError "INTERNAL_ERROR" - Build failed due to an internal cause.
	StatusInternalError = "INTERNAL_ERROR"

	// StatusTimeout "TIMEOUT" - Build took longer than was allowed.
	StatusTimeout = "TIMEOUT"

	// StatusCancelled "CANCELLED" - Build was canceled by a user.
	StatusCancelled = "CANCELLED"

	// RetryDelay is the time to wait in between polling the status of the cloud build
	RetryDelay = 1 * time.Second

	// PollTimeout bounds a single status poll, rate limits included.
	PollTimeout = 3 * time.Minute
)

// GCBConfig parameterizes the Cloud Build backend.
type GCBConfig struct {
	// ProjectID hosts the build. Empty means guess it from the image
	// name.
	ProjectID string

	// Bucket stages the source archive. Empty means
	// "<project>_cloudbuild".
	Bucket string

	// DockerImage is the builder image running the docker build step.
	DockerImage string

	// Timeout is the build timeout, in Cloud Build duration syntax.
	Timeout string
}

// GCBBuilder drives a bake through Google Cloud Build: the context is
// staged to GCS and a docker build step runs remotely.
type GCBBuilder struct {
	cfg  GCBConfig
	opts Options

	// extra client options, used by tests to point at a fake API
	clientOptions []option.ClientOption
}

// NewGCBBuilder creates a Builder backed by Google Cloud Build.
func NewGCBBuilder(cfg GCBConfig, opts Options, clientOptions ...option.ClientOption) *GCBBuilder {
	if cfg.DockerImage == "" {
		cfg.DockerImage = constants.DefaultCloudBuildDockerImage
	}
	return &GCBBuilder{
		cfg:           cfg,
		opts:          opts,
		clientOptions: clientOptions,
	}
}

// Build uploads the staged context to GCS, submits a build and streams
// its logs until a terminal status. Returns the built image digest.
func (b *GCBBuilder) Build(ctx context.Context, out io.Writer, a *Artifact, tagged string) (string, error) {
	recipePath, err := a.NormalizeRecipePath()
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	r, err := recipe.Parse(recipePath)
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}
	if err := r.Validate(); err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("invalid recipe %q: %w", r.Path, err))
	}

	cbclient, err := cloudbuild.NewService(ctx, append(gcp.ClientOptions(), b.clientOptions...)...)
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("getting cloudbuild client: %w", err))
	}

	c, err := cstorage.NewClient(ctx, append(gcp.ClientOptions(), b.clientOptions...)...)
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("getting cloud storage client: %w", err))
	}
	defer c.Close()

	projectID := b.cfg.ProjectID
	if projectID == "" {
		guessedProjectID, err := gcp.ExtractProjectID(tagged)
		if err != nil {
			return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("extracting projectID from image name: %w", err))
		}
		projectID = guessedProjectID
	}
	log.Entry(ctx).Debugf("project id set to %s", projectID)

	bucket := b.cfg.Bucket
	if bucket == "" {
		bucket = projectID + constants.GCSBucketSuffix
	}
	buildObject := fmt.Sprintf("source/%s-%s.tar.gz", projectID, uuid.New().String())

	if err := b.createBucketIfNotExists(ctx, c, projectID, bucket); err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("creating bucket if not exists: %w", err))
	}
	if err := b.checkBucketProjectCorrect(ctx, c, projectID, bucket); err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("checking bucket is in correct project: %w", err))
	}

	output.Default.Fprintf(out, "Pushing build context to gs://%s/%s\n", bucket, buildObject)
	if err := b.uploadContext(ctx, c, a, r, bucket, buildObject); err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("uploading source archive: %w", err))
	}

	spec, err := b.buildSpec(a, r, tagged, bucket, buildObject)
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}

	op, err := cbclient.Projects.Builds.Create(projectID, spec).Context(ctx).Do()
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("creating build: %w", err))
	}
	remoteID, err := getBuildID(op)
	if err != nil {
		return "", tallyerrors.NewProblem(constants.Bake, 0, err)
	}

	logsObject := fmt.Sprintf("log-%s.txt", remoteID)
	output.Default.Fprintf(out, "Logs are available at\nhttps://storage.cloud.google.com/%s/%s\n", bucket, logsObject)

	digest, err := b.watchBuild(ctx, out, c, bucket, logsObject, tagged,
		cbclient.Projects.Builds.Get(projectID, remoteID).Context(ctx).Do)
	if err != nil {
		return "", err
	}

	if err := c.Bucket(bucket).Object(buildObject).Delete(ctx); err != nil {
		log.Entry(ctx).Warnf("unable to delete source archive %q after build: %v", buildObject, err)
	} else {
		log.Entry(ctx).Infof("deleted source archive %s", buildObject)
	}

	return digest, nil
}

// watchBuild polls the build until a terminal status, copying new log
// output as it appears.
func (b *GCBBuilder) watchBuild(ctx context.Context, out io.Writer, c *cstorage.Client, bucket, logsObject, tagged string, getBuild func(...googleapi.CallOption) (*cloudbuild.Build, error)) (string, error) {
	offset := int64(0)
	for {
		cb, err := b.pollBuildStatus(ctx, getBuild)
		if err != nil {
			return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("getting build status: %w", err))
		}

		r, err := b.getLogs(ctx, c, offset, bucket, logsObject)
		if err != nil {
			return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("getting logs: %w", err))
		}
		if r != nil {
			written, err := io.Copy(out, r)
			r.Close()
			if err != nil {
				return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("copying logs: %w", err))
			}
			offset += written
		}

		switch cb.Status {
		case StatusQueued, StatusWorking, StatusUnknown:

		case StatusSuccess:
			digest, err := b.getDigest(cb, tagged)
			if err != nil {
				return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("getting image digest from finished build: %w", err))
			}
			return digest, nil

		case StatusFailure:
			return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("cloud build failed: %s", cb.Status))
		case StatusInternalError:
			return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("cloud build failed due to internal error: %s", cb.Status))
		case StatusTimeout:
			return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("cloud build timed out: %s", cb.Status))
		case StatusCancelled:
			return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("cloud build cancelled: %s", cb.Status))
		default:
			return "", tallyerrors.NewProblem(constants.Bake, 0, fmt.Errorf("cloud build status unknown: %s", cb.Status))
		}

		time.Sleep(RetryDelay)
	}
}

// pollBuildStatus fetches the build, backing off and retrying on rate
// limiting (error code 429).
func (b *GCBBuilder) pollBuildStatus(ctx context.Context, getBuild func(...googleapi.CallOption) (*cloudbuild.Build, error)) (*cloudbuild.Build, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxElapsedTime = PollTimeout

	var cb *cloudbuild.Build
	err := backoff.Retry(func() error {
		var err error
		cb, err = getBuild()
		if err == nil {
			return nil
		}
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))
	return cb, err
}

func (b *GCBBuilder) uploadContext(ctx context.Context, c *cstorage.Client, a *Artifact, r *recipe.Recipe, bucket, buildObject string) error {
	w := c.Bucket(bucket).Object(buildObject).NewWriter(ctx)
	if err := CreateTarGzContext(ctx, w, a, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// buildSpec describes the remote docker build step. The recipe is
// interpreted by the docker builder image, never by this process.
func (b *GCBBuilder) buildSpec(a *Artifact, r *recipe.Recipe, tagged, bucket, buildObject string) (*cloudbuild.Build, error) {
	recipePath, err := a.NormalizeRecipePath()
	if err != nil {
		return nil, err
	}
	relRecipePath, err := filepath.Rel(a.Workspace, recipePath)
	if err != nil {
		return nil, err
	}

	args := []string{"build", "--tag", tagged, "--file", filepath.ToSlash(relRecipePath)}
	var keys []string
	for k := range a.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := a.BuildArgs[k]; v != nil {
			args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, *v))
		} else {
			args = append(args, "--build-arg", k)
		}
	}
	args = append(args, ".")

	return &cloudbuild.Build{
		LogsBucket: bucket,
		Source: &cloudbuild.Source{
			StorageSource: &cloudbuild.StorageSource{
				Bucket: bucket,
				Object: buildObject,
			},
		},
		Steps: []*cloudbuild.BuildStep{{
			Name: b.cfg.DockerImage,
			Args: args,
		}},
		Images:  []string{tagged},
		Timeout: b.cfg.Timeout,
	}, nil
}

func getBuildID(op *cloudbuild.Operation) (string, error) {
	if op.Metadata == nil {
		return "", errors.New("missing Metadata in operation")
	}
	var buildMeta cloudbuild.BuildOperationMetadata
	if err := json.Unmarshal([]byte(op.Metadata), &buildMeta); err != nil {
		return "", err
	}
	if buildMeta.Build == nil {
		return "", errors.New("missing Build in operation metadata")
	}
	return buildMeta.Build.Id, nil
}

func (b *GCBBuilder) getDigest(cb *cloudbuild.Build, tagged string) (string, error) {
	if cb.Results != nil && len(cb.Results.Images) == 1 {
		return cb.Results.Images[0].Digest, nil
	}

	// The build pushed the image itself; ask the registry.
	return docker.RemoteDigest(tagged, b.opts.InsecureRegistries)
}

func (b *GCBBuilder) getLogs(ctx context.Context, c *cstorage.Client, offset int64, bucket, objectName string) (io.ReadCloser, error) {
	r, err := c.Bucket(bucket).Object(objectName).NewRangeReader(ctx, offset, -1)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			switch gerr.Code {
			case 404, 416, 429, 503:
				log.Entry(ctx).Debugf("logs for %s/%s not available yet (status %d)", bucket, objectName, gerr.Code)
				return nil, nil
			}
		}
		if errors.Is(err, cstorage.ErrObjectNotExist) {
			log.Entry(ctx).Debugf("logs for %s/%s not uploaded yet", bucket, objectName)
			return nil, nil
		}
		return nil, fmt.Errorf("unknown error: %w", err)
	}
	return r, nil
}

func (b *GCBBuilder) checkBucketProjectCorrect(ctx context.Context, c *cstorage.Client, projectID, bucket string) error {
	it := c.Buckets(ctx, projectID)
	// Only buckets with this prefix are returned; equality is checked
	// below because prefix is the narrowest available filter.
	it.Prefix = bucket
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return fmt.Errorf("bucket not found: %w", err)
		}
		if err != nil {
			return fmt.Errorf("iterating over buckets: %w", err)
		}
		if attrs.Name == bucket {
			return nil
		}
	}
}

func (b *GCBBuilder) createBucketIfNotExists(ctx context.Context, c *cstorage.Client, projectID, bucket string) error {
	_, err := c.Bucket(bucket).Attrs(ctx)
	if err == nil {
		// bucket exists
		return nil
	}
	if !errors.Is(err, cstorage.ErrBucketNotExist) {
		return fmt.Errorf("getting bucket %q: %w", bucket, err)
	}

	err = c.Bucket(bucket).Create(ctx, projectID, &cstorage.BucketAttrs{
		Name: bucket,
	})
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
		// 409 means a race or eventual consistency: the bucket exists.
		log.Entry(ctx).Debug("not creating bucket, got a 409 indicating it already exists")
		return nil
	}
	if err != nil {
		return err
	}

	log.Entry(ctx).Debugf("created bucket %s in %s", bucket, projectID)
	return nil
}
