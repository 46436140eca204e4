package processor

import (
	"fmt"
	"strings"
)

// 内置题库, 进程内只读

var fallbackSoftSkill = [SoftSkillQuestions]string{
	"Tell me about a time you had to deliver under a tight deadline. How did you prioritize your work?",
	"Describe a disagreement with a teammate and how you resolved it.",
	"What is a piece of feedback you received recently, and what did you change because of it?",
}

// 技术题模板, %s 为岗位技术栈
var fallbackTechnical = [TotalQuestions - SoftSkillQuestions]string{
	"Which parts of %s have you used in production, and what trade-offs did you run into?",
	"How would you structure a new service built with %s so that it stays maintainable as it grows?",
	"How do you test code written with %s, and what do you consider sufficient coverage?",
	"Walk me through how you would debug a performance regression in a system using %s.",
	"What security pitfalls should a developer working with %s watch out for?",
	"How would you design error handling and logging for an application built on %s?",
	"Describe how you would review a pull request that introduces a new dependency into a %s codebase.",
	"How do you keep your knowledge of %s current, and what recent change affected your work?",
	"Explain how you would handle concurrency or parallel work in a project using %s.",
	"How would you deploy and monitor a %s application in production?",
	"What is the most complex bug you have fixed involving %s, and how did you find the root cause?",
	"If you had to onboard a junior developer to a %s project, what would you teach first?",
}

// 题库中引用的技术关键词个数上限
const fallbackStackTerms = 5

// FallbackQuestions 用岗位技术栈填充内置题库, 每次返回新切片
func FallbackQuestions(techStack []string) []string {
	stack := fallbackStack(techStack)
	out := make([]string, 0, TotalQuestions)
	out = append(out, fallbackSoftSkill[:]...)
	for _, tmpl := range fallbackTechnical {
		out = append(out, fmt.Sprintf(tmpl, stack))
	}
	return out
}

func fallbackStack(techStack []string) string {
	var terms []string
	seen := make(map[string]bool, len(techStack))
	for _, t := range techStack {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
		if len(terms) == fallbackStackTerms {
			break
		}
	}
	if len(terms) == 0 {
		return defaultTechStackToken + " software development"
	}
	return strings.Join(terms, ", ")
}
