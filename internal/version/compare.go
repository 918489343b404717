package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// CheckDataCompatibility reports whether a data root written by dataVersion can be resumed by
// binaryVersion. The artifact layout and status markers only change on minor releases, so
// major and minor must match and patch may differ. An empty dataVersion predates version
// stamping and is accepted, as is "main" on either side.
func CheckDataCompatibility(binaryVersion, dataVersion string) error {
	binaryVersion = strings.TrimPrefix(binaryVersion, "v")
	dataVersion = strings.TrimPrefix(dataVersion, "v")

	if dataVersion == "" || binaryVersion == "main" || dataVersion == "main" {
		return nil
	}

	binary, err := semver.NewVersion(binaryVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid binary version %q", binaryVersion)
	}

	data, err := semver.NewVersion(dataVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid data version %q", dataVersion)
	}

	if binary.Major() != data.Major() || binary.Minor() != data.Minor() {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"data was written by %d.%d.x but this binary is %d.%d.x",
			data.Major(), data.Minor(), binary.Major(), binary.Minor())
	}

	return nil
}
