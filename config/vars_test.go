package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gridprobe/config"
)

var _ = Describe("Vars file", func() {
	BeforeEach(func() {
		home, err := os.UserHomeDir()
		Expect(err).NotTo(HaveOccurred())
		os.Setenv("HOME", GinkgoT().TempDir())
		DeferCleanup(os.Setenv, "HOME", home)
	})

	It("treats a missing file as an empty set", func() {
		vars, err := config.LoadVarsFromFile()
		Expect(err).NotTo(HaveOccurred())
		Expect(vars).To(BeEmpty())
	})

	It("round-trips set, get, and delete", func() {
		Expect(config.SetVar("openai_api_key", "sk-test")).To(Succeed())

		value, err := config.GetVar("openai_api_key")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("sk-test"))

		Expect(config.DeleteVar("openai_api_key")).To(Succeed())
		_, err = config.GetVar("openai_api_key")
		Expect(err).To(MatchError(ContainSubstring("is not set")))
	})

	It("rejects deleting a variable that was never stored", func() {
		Expect(config.DeleteVar("nope")).To(MatchError(ContainSubstring(`"nope" is not set`)))
	})

	It("lists names in sorted order", func() {
		Expect(config.SetVar("zeta", "1")).To(Succeed())
		Expect(config.SetVar("alpha", "2")).To(Succeed())

		names, err := config.ListVars()
		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"alpha", "zeta"}))
	})

	It("skips comments and blanks and keeps = inside values", func() {
		path, err := config.GetVarsFilePath()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.MkdirAll(filepath.Dir(path), 0700)).To(Succeed())
		content := "# managed by 'gridprobe vars'\n\nexa_api_key=abc=def\n"
		Expect(os.WriteFile(path, []byte(content), 0600)).To(Succeed())

		vars, err := config.LoadVarsFromFile()
		Expect(err).NotTo(HaveOccurred())
		Expect(vars).To(Equal(map[string]string{"exa_api_key": "abc=def"}))
	})
})

var _ = Describe("Variable", func() {
	It("rejects a secret with a config default", func() {
		v := &config.Variable{Name: "openai_key", Default: "sk-oops", Secret: true}
		Expect(v.Validate()).To(MatchError(ContainSubstring("must not carry a default")))
	})

	It("accepts a secret without a default", func() {
		v := &config.Variable{Name: "openai_key", Secret: true}
		Expect(v.Validate()).To(Succeed())
	})
})
