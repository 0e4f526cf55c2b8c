package locpak

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCondaVersion_BannerForms(t *testing.T) {
	require.Equal(t, "4.8.3", parseCondaVersion("conda 4.8.3\n"))
	require.Equal(t, "4.4.4", parseCondaVersion("\nconda 4.4.4"))
	// Some builds print the bare version.
	require.Equal(t, "4.10.1", parseCondaVersion("4.10.1\n"))
	require.Equal(t, "", parseCondaVersion("something else entirely"))
	require.Equal(t, "", parseCondaVersion(""))
}

func TestParseCondaList_SkipsCommentsAndParsesChannels(t *testing.T) {
	out := `# packages in environment at /opt/conda:
#
# Name                    Version                   Build  Channel
behresp                   0.4.0                    py36_0  local
conda-build               3.18.11                  py37_0
numpy                     1.16.4           py36h7e9f1db_0  defaults
stray line
`
	pkgs := parseCondaList(out)
	require.Len(t, pkgs, 3)
	require.Equal(t, InstalledPackage{Name: "behresp", Version: "0.4.0", Build: "py36_0", Channel: "local"}, pkgs[0])
	require.Equal(t, "conda-build", pkgs[1].Name)
	require.Empty(t, pkgs[1].Channel)
	require.Equal(t, "defaults", pkgs[2].Channel)
}

func TestBuildHelperPresent_PrefixMatch(t *testing.T) {
	require.False(t, buildHelperPresent(nil))
	require.False(t, buildHelperPresent([]InstalledPackage{{Name: "conda"}, {Name: "anaconda-client"}}))
	require.True(t, buildHelperPresent([]InstalledPackage{{Name: "conda-build"}}))
	// Presence is a name-prefix check, not an exact match.
	require.True(t, buildHelperPresent([]InstalledPackage{{Name: "conda-build-all"}}))
}

func TestCondaCLI_BuildArgs(t *testing.T) {
	c := &CondaCLI{Bin: "conda"}

	args := c.buildArgs(".", BuildOptions{Python: "3.6", OldBuildString: true})
	require.Equal(t, []string{"build", ".", "--old-build-string", "--python", "3.6"}, args)

	args = c.buildArgs("conda.recipe", BuildOptions{})
	require.Equal(t, []string{"build", "conda.recipe"}, args)
}

func TestIsNotInstalled_RecognizedSpellings(t *testing.T) {
	require.False(t, isNotInstalled(nil))
	require.False(t, isNotInstalled(&InvocationResult{ExitCode: 0}))
	require.False(t, isNotInstalled(&InvocationResult{ExitCode: 1, Stderr: "CondaHTTPError: connection refused"}))
	require.True(t, isNotInstalled(&InvocationResult{ExitCode: 1, Stderr: "PackagesNotFoundError: the following packages are missing"}))
	require.True(t, isNotInstalled(&InvocationResult{ExitCode: 1, Stdout: "PackageNotFoundError: behresp"}))
	require.True(t, isNotInstalled(&InvocationResult{ExitCode: 1, Stderr: "PackageNotInstalledError: behresp"}))
}
