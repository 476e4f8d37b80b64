package version

// EmptyValue is the value we use when running a version that wasn't compiled
// by `make`. This is helpful for telling when we're running in a unit test.
const EmptyValue = "set-by-make"

// Version is the latest tag on git for releases. On non-release commits, it may
// include additional information such as the most recent commit hash.
var Version = EmptyValue

// UserAgent identifies the mirror to remote services. The S3 backend sends it
// as the AWS SDK's application ID.
func UserAgent() string {
	return "remote-mirror/" + Version
}
